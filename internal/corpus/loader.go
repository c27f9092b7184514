// Package corpus 负责解析并校验租户上传的问答语料表格。
package corpus

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

const (
	// 两列语义列名大小写敏感、必须精确匹配。
	columnQuestion = "question"
	columnAnswer   = "answer"
)

// SchemaValidationError 表示表格缺少必需列。
// 缺列直接使摄取任务失败，绝不静默丢行。
type SchemaValidationError struct {
	Missing []string
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("CSV must contain %s columns", strings.Join(e.Missing, " and "))
}

// Row 是一条可索引的问答对，保持文件内的原始顺序。
type Row struct {
	Question string
	Answer   string
}

// Load 将 r 解析为 CSV 并返回有序的问答对序列。
// 头部缺少 question 或 answer 列时返回 SchemaValidationError；
// 零数据行不是错误，返回空序列。单元格一律按文本处理，
// 行尾缺失的单元格按空字符串补齐。本层不做去重，
// 幂等性由向量存储按记录 ID 保证。
func Load(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		// 连表头都没有，等同于两列全缺
		return nil, &SchemaValidationError{Missing: []string{"'" + columnQuestion + "'", "'" + columnAnswer + "'"}}
	}
	if err != nil {
		return nil, fmt.Errorf("读取 CSV 表头失败: %w", err)
	}

	qIdx, aIdx, err := locateColumns(header)
	if err != nil {
		return nil, err
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("读取 CSV 数据行失败: %w", err)
		}
		rows = append(rows, Row{
			Question: cellAt(record, qIdx),
			Answer:   cellAt(record, aIdx),
		})
	}
	return rows, nil
}

// ValidateHeader 只校验表头，供上传入口在受理文件时做前置检查。
func ValidateHeader(r io.Reader) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return &SchemaValidationError{Missing: []string{"'" + columnQuestion + "'", "'" + columnAnswer + "'"}}
	}
	if err != nil {
		return fmt.Errorf("读取 CSV 表头失败: %w", err)
	}
	_, _, err = locateColumns(header)
	return err
}

// locateColumns 在表头中定位两列语义列，任一缺失即报 SchemaValidationError。
func locateColumns(header []string) (qIdx, aIdx int, err error) {
	qIdx, aIdx = -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case columnQuestion:
			if qIdx == -1 {
				qIdx = i
			}
		case columnAnswer:
			if aIdx == -1 {
				aIdx = i
			}
		}
	}

	var missing []string
	if qIdx == -1 {
		missing = append(missing, "'"+columnQuestion+"'")
	}
	if aIdx == -1 {
		missing = append(missing, "'"+columnAnswer+"'")
	}
	if len(missing) > 0 {
		return 0, 0, &SchemaValidationError{Missing: missing}
	}
	return qIdx, aIdx, nil
}

func cellAt(record []string, idx int) string {
	if idx < len(record) {
		return record[idx]
	}
	return ""
}
