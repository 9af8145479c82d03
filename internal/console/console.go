// Package console 实现前台命令循环：读取一行、别名替换、同步执行、渲染结果。
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"trade-console/internal/alias"
	"trade-console/internal/engine"
	"trade-console/internal/position"
	"trade-console/internal/session"
)

// Journal 记录命令级失败，由事件日志实现。
type Journal interface {
	RecordCommandError(ctx context.Context, command string, err error)
}

// Console 为交互式命令行。命令完全同步执行，无命令内并行。
type Console struct {
	session   *session.Session
	engine    *engine.Engine
	positions *position.Manager
	aliases   *alias.Table
	journal   Journal
	logger    *zap.Logger

	in  io.Reader
	out io.Writer
}

// New 创建命令行实例。
func New(
	sess *session.Session,
	eng *engine.Engine,
	positions *position.Manager,
	aliases *alias.Table,
	journal Journal,
	logger *zap.Logger,
	in io.Reader,
	out io.Writer,
) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{
		session:   sess,
		engine:    eng,
		positions: positions,
		aliases:   aliases,
		journal:   journal,
		logger:    logger,
		in:        in,
		out:       out,
	}
}

// Run 驱动命令循环直到 exit、输入结束或上下文取消。
func (c *Console) Run(ctx context.Context) error {
	fmt.Fprintln(c.out, "欢迎使用多账户交易控制台，输入 help 查看命令列表。")

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
		close(lines)
	}()

	for {
		fmt.Fprintf(c.out, "[%s] > ", strings.ToUpper(c.session.Instrument()))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				if err := <-scanErr; err != nil {
					return fmt.Errorf("读取输入失败: %w", err)
				}
				return nil
			}
			if exit := c.dispatch(ctx, line); exit {
				return nil
			}
		}
	}
}

func (c *Console) dispatch(ctx context.Context, line string) bool {
	line = c.aliases.Resolve(line)
	if line == "" {
		return false
	}

	fields := strings.Fields(line)
	command, args := fields[0], fields[1:]

	switch command {
	case "exit":
		fmt.Fprintln(c.out, "再见。")
		return true
	case "help":
		c.printHelp()
	case "login":
		c.handleLogin(ctx, args)
	case "instrument":
		c.handleInstrument(args)
	case "leverage":
		c.handleLeverage(ctx, args)
	case "buy":
		c.handleOrder(ctx, engine.SideBuy, args)
	case "sell":
		c.handleOrder(ctx, engine.SideSell, args)
	case "close":
		c.handleClose(ctx, args)
	case "positions", "pl":
		c.handlePositions(ctx)
	case "order_list":
		c.handleOrderList(ctx)
	case "cancel_order":
		c.handleCancelOrder(ctx)
	case "balance":
		c.handleBalance(ctx, args)
	case "stop":
		c.handleStop(ctx, args)
	default:
		fmt.Fprintf(c.out, "未知命令 %q，输入 help 查看命令列表。\n", command)
	}

	return false
}

func (c *Console) handleLogin(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "用法: login <账户或分组>")
		return
	}

	results, err := c.session.Login(ctx, args[0])
	if err != nil {
		c.reportError(ctx, "login", err)
		return
	}

	fmt.Fprintf(c.out, "已登录 %s（%d 个账户）\n", args[0], len(results))
	c.render(ctx, "login", results)
}

func (c *Console) handleInstrument(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "用法: instrument <标的代码>")
		return
	}
	c.session.SetInstrument(args[0])
	fmt.Fprintf(c.out, "当前标的: %s\n", c.session.Instrument())
}

func (c *Console) handleLeverage(ctx context.Context, args []string) {
	if !c.requireLogin() {
		return
	}
	if len(args) != 1 {
		fmt.Fprintln(c.out, "用法: leverage <整数倍数>")
		return
	}
	leverage, err := strconv.Atoi(args[0])
	if err != nil || leverage <= 0 {
		fmt.Fprintf(c.out, "杠杆倍数无效: %q\n", args[0])
		return
	}

	results := c.engine.SetLeverage(ctx, c.session.Targets(), leverage, c.session.Instrument())
	c.render(ctx, "leverage", results)
}

func (c *Console) handleOrder(ctx context.Context, side engine.Side, args []string) {
	if !c.requireLogin() {
		return
	}
	if len(args) == 0 || len(args) > 2 {
		fmt.Fprintf(c.out, "用法: %s <数量|百分比%%> [限价]\n", side)
		return
	}

	amount, err := engine.ParseAmount(args[0])
	if err != nil {
		c.reportError(ctx, string(side), err)
		return
	}

	var limitPrice *float64
	if len(args) == 2 {
		price, err := strconv.ParseFloat(args[1], 64)
		if err != nil || price <= 0 {
			fmt.Fprintf(c.out, "限价无效: %q\n", args[1])
			return
		}
		limitPrice = &price
	}

	results := c.engine.Execute(ctx, c.session.Targets(), engine.Intent{
		Side:       side,
		Instrument: c.session.Instrument(),
		Amount:     amount,
		LimitPrice: limitPrice,
	})
	c.render(ctx, string(side), results)
}

func (c *Console) handleClose(ctx context.Context, args []string) {
	if !c.requireLogin() {
		return
	}
	if len(args) != 1 {
		fmt.Fprintln(c.out, "用法: close current|all")
		return
	}

	results, err := c.positions.Close(ctx, c.session.Targets(), args[0], c.session.Instrument())
	if err != nil {
		c.reportError(ctx, "close", err)
		return
	}
	c.render(ctx, "close", results)
}

func (c *Console) handlePositions(ctx context.Context) {
	if !c.requireLogin() {
		return
	}
	c.render(ctx, "positions", c.positions.List(ctx, c.session.Targets()))
}

func (c *Console) handleOrderList(ctx context.Context) {
	if !c.requireLogin() {
		return
	}
	c.render(ctx, "order_list", c.engine.ListOpenOrders(ctx, c.session.Targets(), c.session.Instrument()))
}

func (c *Console) handleCancelOrder(ctx context.Context) {
	if !c.requireLogin() {
		return
	}
	c.render(ctx, "cancel_order", c.engine.CancelOpenOrders(ctx, c.session.Targets(), c.session.Instrument()))
}

func (c *Console) handleBalance(ctx context.Context, args []string) {
	if !c.requireLogin() {
		return
	}
	if len(args) != 1 || !strings.EqualFold(args[0], "list") {
		fmt.Fprintln(c.out, "用法: balance list")
		return
	}
	c.render(ctx, "balance", c.positions.Balances(ctx, c.session.Targets()))
}

func (c *Console) handleStop(ctx context.Context, args []string) {
	if !c.requireLogin() {
		return
	}
	if len(args) != 1 {
		fmt.Fprintln(c.out, "用法: stop <触发价>")
		return
	}

	results, err := c.positions.SetStop(ctx, c.session.Targets(), c.session.Instrument(), args[0])
	if err != nil {
		c.reportError(ctx, "stop", err)
		return
	}
	c.render(ctx, "stop", results)
}

func (c *Console) requireLogin() bool {
	if c.session.HasTargets() {
		return true
	}
	fmt.Fprintln(c.out, "请先使用 login 登录账户或分组。")
	return false
}

// render 输出逐目标结果；失败只影响对应目标的那一行。
func (c *Console) render(ctx context.Context, command string, results []session.Result) {
	for _, result := range results {
		if result.Err != nil {
			fmt.Fprintf(c.out, "(%s) 错误: %v\n", result.Target, result.Err)
			if c.journal != nil {
				c.journal.RecordCommandError(ctx, command, fmt.Errorf("%s: %w", result.Target, result.Err))
			}
			continue
		}
		for _, line := range strings.Split(result.Message, "\n") {
			fmt.Fprintf(c.out, "(%s) %s\n", result.Target, line)
		}
	}
}

func (c *Console) reportError(ctx context.Context, command string, err error) {
	fmt.Fprintf(c.out, "错误: %v\n", err)
	if c.journal != nil {
		c.journal.RecordCommandError(ctx, command, err)
	}
	c.logger.Warn("命令执行失败", zap.String("command", command), zap.Error(err))
}

func (c *Console) printHelp() {
	help := []string{
		"login <账户或分组>     登录并选中目标集合",
		"instrument <代码>      切换当前标的，例如 instrument BTCUSDT",
		"leverage <倍数>        为当前标的设置杠杆",
		"buy <数量|p%> [限价]   买入，可按可用余额百分比",
		"sell <数量|p%> [限价]  卖出，可按可用余额百分比",
		"close current|all      平掉当前标的或全部持仓",
		"positions | pl         查看持仓与浮动盈亏",
		"order_list             查看当前标的的未成交委托",
		"cancel_order           撤销当前标的的全部未成交委托",
		"balance list           查看非零余额",
		"stop <触发价>          为当前持仓设置止损市价单",
		"exit                   退出",
	}
	for _, line := range help {
		fmt.Fprintln(c.out, line)
	}
}
