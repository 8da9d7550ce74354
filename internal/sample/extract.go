package sample

import (
	"bytes"
	"context"
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/natalis/natalis/internal/storage"
)

// EncodeParquet writes records as a single parquet file.
func EncodeParquet(records []Record) ([]byte, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("records are required")
	}
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[Record](buf)
	if _, err := writer.Write(records); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeParquet reads back an extract written by EncodeParquet.
func DecodeParquet(payload []byte) ([]Record, error) {
	records, err := parquet.Read[Record](bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return nil, fmt.Errorf("read parquet rows: %w", err)
	}
	return records, nil
}

// Publish generates n records from seed and stores them under key.
func Publish(ctx context.Context, store storage.ObjectStore, key string, n int, seed int64) (storage.ObjectInfo, error) {
	if err := storage.ValidateKey(key); err != nil {
		return storage.ObjectInfo{}, err
	}
	if n <= 0 {
		return storage.ObjectInfo{}, fmt.Errorf("record count must be > 0")
	}
	payload, err := EncodeParquet(NewGenerator(seed).Generate(n))
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	info, err := store.Put(ctx, key, bytes.NewReader(payload), int64(len(payload)), storage.PutOptions{ContentType: storage.ParquetContentType})
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("upload extract: %w", err)
	}
	return info, nil
}
