package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/marketboard/marketboard/internal/domain"
)

// LoadProductFile reads product logs from a JSONL file (one object per
// line, API field names). Blank and malformed lines are skipped and
// counted, never fatal.
func LoadProductFile(path string) (records []domain.ProductLog, skipped int, err error) {
	err = scanJSONL(path, func(raw rawLog) {
		if !validProduct(raw) {
			skipped++
			return
		}
		records = append(records, productFromRaw(raw))
	}, &skipped)
	return records, skipped, err
}

// LoadSaleFile reads sale agreement logs from a JSONL file.
func LoadSaleFile(path string) (records []domain.SaleLog, skipped int, err error) {
	err = scanJSONL(path, func(raw rawLog) {
		if !validSale(raw) {
			skipped++
			return
		}
		records = append(records, saleFromRaw(raw))
	}, &skipped)
	return records, skipped, err
}

func scanJSONL(path string, emit func(rawLog), skipped *int) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var raw rawLog
		if err := json.Unmarshal(line, &raw); err != nil {
			*skipped++
			continue
		}
		emit(raw)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read log file: %w", err)
	}
	return nil
}
