package response

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/openbuilders/synapse-batch/internal/errors"
	"github.com/openbuilders/synapse-batch/internal/types"
)

type batchDocument struct {
	ErrorCode  flexString         `json:"error_code"`
	HTTPCode   flexString         `json:"http_code"`
	Success    bool               `json:"success"`
	PageCount  int                `json:"page_count"`
	TransCount int                `json:"trans_count"`
	Trans      *[]json.RawMessage `json:"trans"`
}

// ParseBatch maps a batch transaction response document to a BatchResult.
// Top-level fields are copied as is and every entry of "trans" becomes a
// record, in the order the API returned them.
func ParseBatch(node *types.Node, document []byte) (*types.BatchResult, error) {
	var doc batchDocument
	if err := decodeObject(document, &doc); err != nil {
		return nil, errors.MalformedResponse("decode batch document", err)
	}

	if doc.Trans == nil {
		return nil, errors.MalformedResponse(`missing "trans" field`, nil)
	}

	result := &types.BatchResult{
		Node:       node,
		ErrorCode:  string(doc.ErrorCode),
		HTTPCode:   string(doc.HTTPCode),
		Success:    doc.Success,
		PageCount:  doc.PageCount,
		TransCount: doc.TransCount,
		Trans:      make([]types.TransactionRecord, 0, len(*doc.Trans)),
	}

	for i, raw := range *doc.Trans {
		record, err := ParseTransaction(node, raw)
		if err != nil {
			return nil, fmt.Errorf("trans %d: %w", i, err)
		}

		result.Trans = append(result.Trans, *record)
	}

	return result, nil
}

// decodeObject rejects anything but a JSON object before decoding it into v.
func decodeObject(data []byte, v any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("expected a JSON object")
	}

	return json.Unmarshal(trimmed, v)
}

// flexString accepts both strings and bare numbers, the API is not
// consistent about codes and ids.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = flexString(str)
		return nil
	}

	*s = flexString(data)
	return nil
}
