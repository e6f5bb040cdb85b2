package classifier

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// CIFAR10Labels 默认类别，顺序与模型输出一致
var CIFAR10Labels = []string{
	"airplane", "automobile", "bird", "cat", "deer",
	"dog", "frog", "horse", "ship", "truck",
}

// LoadLabels 逐行读取标签文件，path 为空时返回默认类别
func LoadLabels(path string) ([]string, error) {
	if path == "" {
		return append([]string(nil), CIFAR10Labels...), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open labels file: %w", err)
	}
	defer f.Close()

	var labels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			labels = append(labels, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read labels file: %w", err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("labels file %s is empty", path)
	}
	return labels, nil
}
