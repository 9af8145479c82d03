// Package alias 实现输入行到标准命令的映射表。
package alias

import (
	"bufio"
	"os"
	"strings"

	"go.uber.org/zap"
)

// Table 为只读的别名表，按整行精确匹配。
type Table struct {
	entries map[string]string
}

// LoadFile 从文件加载别名表。行格式为 `alias <别名> <命令>`；
// 格式不符或重复定义的行忽略（首个定义生效）。文件不存在时返回空表。
func LoadFile(path string, logger *zap.Logger) (*Table, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	table := &Table{entries: make(map[string]string)}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("别名文件不存在，跳过加载", zap.String("path", path))
			return table, nil
		}
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		parts := strings.SplitN(strings.TrimSpace(scanner.Text()), " ", 3)
		if len(parts) != 3 || parts[0] != "alias" {
			continue
		}
		name, command := parts[1], parts[2]
		if _, exists := table.entries[name]; exists {
			continue
		}
		table.entries[name] = command
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	logger.Info("别名加载完成", zap.Int("count", len(table.entries)))
	return table, nil
}

// Resolve 在分发前对整行输入做一次别名替换；无匹配时原样返回。
func (t *Table) Resolve(line string) string {
	line = strings.TrimSpace(line)
	if command, ok := t.entries[line]; ok {
		return command
	}
	return line
}

// Len 返回别名条目数。
func (t *Table) Len() int {
	return len(t.entries)
}
