package deployment

import (
	"fmt"

	"github.com/alexandersjoberg/sidekick/pkg/encode"
	"github.com/tidwall/gjson"
)

// Request is the wire form of a prediction batch.
type Request struct {
	Rows []map[string]any `json:"rows"`
}

// BuildRequest encodes items into one batch, one row per item. Every input
// feature must be present in every item.
func BuildRequest(items []encode.DataItem, specs []encode.FeatureSpec) (*Request, error) {
	rows := make([]map[string]any, 0, len(items))
	for _, item := range items {
		row := make(map[string]any, len(specs))
		for _, spec := range specs {
			value, ok := item[spec.Name]
			if !ok {
				return nil, &MissingFeatureError{Name: spec.Name}
			}
			encoded, err := encode.EncodeFeature(value, spec)
			if err != nil {
				return nil, err
			}
			row[spec.Name] = encoded
		}
		rows = append(rows, row)
	}
	return &Request{Rows: rows}, nil
}

// ParseResponse checks a prediction response for errors and returns its rows
// as a lazy sequence. Rows are decoded one at a time as the sequence is
// consumed.
func ParseResponse(body []byte, specs []encode.FeatureSpec) (*Predictions, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: body is not valid JSON", ErrMalformedResponse)
	}
	response := gjson.ParseBytes(body)
	if code := response.Get("errorCode"); code.Exists() {
		return nil, &ServerError{Code: code.String(), Message: response.Get("errorMessage").String()}
	}
	rows := response.Get("rows")
	if !rows.Exists() {
		return nil, fmt.Errorf("%w: return data does not contain rows", ErrMalformedResponse)
	}
	if !rows.IsArray() {
		return nil, fmt.Errorf("%w: rows is not a list", ErrMalformedResponse)
	}
	pending := rows.Array()
	return newPredictions(func() (encode.DataItem, bool, error) {
		if len(pending) == 0 {
			return nil, false, nil
		}
		row := pending[0]
		pending = pending[1:]
		item, err := decodeRow(row, specs)
		if err != nil {
			return nil, false, err
		}
		return item, true, nil
	}, nil), nil
}

func decodeRow(row gjson.Result, specs []encode.FeatureSpec) (encode.DataItem, error) {
	if !row.IsObject() {
		return nil, fmt.Errorf("%w: row is not an object", ErrMalformedResponse)
	}
	// Map avoids gjson path syntax in feature names
	values := row.Map()
	item := make(encode.DataItem, len(specs))
	for _, spec := range specs {
		value, ok := values[spec.Name]
		if !ok {
			return nil, &MissingFeatureError{Name: spec.Name}
		}
		decoded, err := encode.DecodeFeature(value.Value(), spec)
		if err != nil {
			return nil, err
		}
		item[spec.Name] = decoded
	}
	return item, nil
}

// Predictions is a single-pass sequence of decoded prediction rows.
//
//	for p.Next() {
//		item := p.Item()
//	}
//	if err := p.Err(); err != nil {
//	}
type Predictions struct {
	next func() (encode.DataItem, bool, error)
	stop func()
	item encode.DataItem
	err  error
	done bool
}

func newPredictions(next func() (encode.DataItem, bool, error), stop func()) *Predictions {
	return &Predictions{next: next, stop: stop}
}

// Next advances to the next item. It returns false when the sequence is
// exhausted or an error occurred.
func (p *Predictions) Next() bool {
	if p.done {
		return false
	}
	item, ok, err := p.next()
	if err != nil || !ok {
		p.err = err
		p.item = nil
		p.Close()
		return false
	}
	p.item = item
	return true
}

// Item returns the current item.
func (p *Predictions) Item() encode.DataItem {
	return p.item
}

// Err returns the error that ended the sequence, if any.
func (p *Predictions) Err() error {
	return p.err
}

// Close releases the sequence without consuming the remaining items.
func (p *Predictions) Close() {
	if p.done {
		return
	}
	p.done = true
	if p.stop != nil {
		p.stop()
	}
}

// Collect consumes the rest of the sequence.
func (p *Predictions) Collect() ([]encode.DataItem, error) {
	items := make([]encode.DataItem, 0)
	for p.Next() {
		items = append(items, p.Item())
	}
	if err := p.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
