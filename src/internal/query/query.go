package query

import (
	"fmt"
	"os"
	"strings"
)

// Query 编译后的查询：小写、去掉 0x 前缀的十六进制片段
type Query struct {
	fragment string
}

// Compile 把原始查询串规整成 Query。任何输入都有唯一结果，不会失败。
func Compile(raw string) Query {
	return Query{fragment: normalize(raw)}
}

// Load 读取查询文件，去掉末尾的换行
func Load(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("读取查询文件失败: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

// String 返回规整后的片段
func (q Query) String() string {
	return q.fragment
}

// Empty 规整后是否为空
func (q Query) Empty() bool {
	return q.fragment == ""
}

// Match 判断 payload 中是否包含查询片段。
// available 为 false 表示 payload 为空（"" 或 "0x"），此时 matched 恒为 false，
// 调用方应把它当作数据缺失上报，而不是中止扫描。
func (q Query) Match(payload string) (matched bool, available bool) {
	p := normalize(payload)
	if p == "" {
		return false, false
	}
	return strings.Contains(p, q.fragment), true
}

func normalize(s string) string {
	s = strings.ToLower(s)
	return strings.TrimPrefix(s, "0x")
}
