package domain

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// FileSource 从本地文件读取待跟踪的域名。
// 每行一个域名，忽略空行和 # 注释；兼容旧格式 domain|source|expiry，只取第一列。
type FileSource struct {
	paths []string
}

func NewFileSource(paths ...string) *FileSource {
	return &FileSource{paths: paths}
}

// LoadNames 按文件顺序返回去重后的域名，格式不对的行直接跳过。
func (s *FileSource) LoadNames() ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	for _, path := range s.paths {
		names, err := readNames(path)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out, nil
}

func readNames(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open domain file %s: %w", path, err)
	}
	defer file.Close()

	var out []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		first := strings.TrimSpace(strings.Split(line, "|")[0])
		name, err := NormalizeName(first)
		if err != nil {
			continue
		}
		out = append(out, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read domain file %s: %w", path, err)
	}
	return out, nil
}
