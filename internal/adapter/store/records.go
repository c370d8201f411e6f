package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"ecom-support/internal/domain/entity"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadProducts reads the product catalog, a JSON array of objects.
func LoadProducts(path string, logger *zap.Logger) ([]entity.ProductRecord, error) {
	return ReadRecords[entity.ProductRecord](path, logger)
}

// LoadUsers reads the user's orders for retrieval. Orders repeating an
// earlier product_name are dropped so the name stays a usable key.
func LoadUsers(path string, logger *zap.Logger) ([]entity.UserRecord, error) {
	records, err := ReadRecords[entity.UserRecord](path, logger)
	if err != nil {
		return nil, err
	}
	return dedupeByName(records, logger), nil
}

// DecodeRecords parses a JSON array of records. Bad data stays local to the
// record it is in: a field holding an array or object is read as an empty
// string, a record missing a required field is kept, and an element that is
// not an object is skipped. Each case is logged. Only a document that is not
// a JSON array fails.
func DecodeRecords[R entity.Record](data []byte, logger *zap.Logger) ([]R, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding records: %w", err)
	}

	records := make([]R, 0, len(raw))
	for i, item := range raw {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil {
			logger.Warn("skipping record that is not an object", zap.Int("position", i), zap.Error(err))
			continue
		}
		for name, value := range fields {
			if !entity.IsScalarJSON(value) {
				logger.Warn("malformed field value replaced with empty string",
					zap.Int("position", i),
					zap.String("field", name))
			}
		}

		var r R
		if err := json.Unmarshal(item, &r); err != nil {
			logger.Warn("skipping undecodable record", zap.Int("position", i), zap.Error(err))
			continue
		}
		if err := validate.Struct(r); err != nil {
			logger.Warn("incomplete record", zap.Int("position", i), zap.Error(err))
		}
		records = append(records, r)
	}
	return records, nil
}

// ReadRecords loads every record of a file in file order, duplicates
// included.
func ReadRecords[R entity.Record](path string, logger *zap.Logger) ([]R, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	records, err := DecodeRecords[R](data, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logger.Info("records loaded", zap.String("path", path), zap.Int("count", len(records)))
	return records, nil
}

func dedupeByName[R entity.Record](records []R, logger *zap.Logger) []R {
	seen := make(map[string]struct{}, len(records))
	out := make([]R, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r.Name()]; ok {
			logger.Debug("dropping duplicate record", zap.String("product_name", r.Name()))
			continue
		}
		seen[r.Name()] = struct{}{}
		out = append(out, r)
	}
	return out
}
