package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"

	"github.com/alexandersjoberg/sidekick/pkg/deployment"
	"github.com/alexandersjoberg/sidekick/pkg/encode"
)

func runPredict(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("predict", flag.ExitOnError)
	input := flags.String("input", "", "JSON lines file with one item per line, stdin when empty")
	output := flags.String("output", "", "file to write predictions to, stdout when empty")
	if err := flags.Parse(args); err != nil {
		return err
	}

	in := io.Reader(os.Stdin)
	if *input != "" {
		f, err := os.Open(*input)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	out := io.Writer(os.Stdout)
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	d, err := deployment.NewFromEnv(ctx)
	if err != nil {
		return err
	}
	return predict(ctx, d, in, out)
}

func predict(ctx context.Context, d *deployment.Deployment, in io.Reader, out io.Writer) error {
	var readErr error
	items := readItems(in, d.InputSpecs(), &readErr)

	predictions := d.PredictLazy(ctx, items)
	defer predictions.Close()

	w := bufio.NewWriter(out)
	enc := json.NewEncoder(w)
	for predictions.Next() {
		rendered, err := renderItem(predictions.Item())
		if err != nil {
			return err
		}
		if err := enc.Encode(rendered); err != nil {
			return err
		}
	}
	if err := predictions.Err(); err != nil {
		return err
	}
	if readErr != nil {
		return readErr
	}
	return w.Flush()
}

// readItems decodes one JSON object per line. Reading stops at the first bad
// line and the error is stored in errp.
func readItems(r io.Reader, specs []encode.FeatureSpec, errp *error) iter.Seq[encode.DataItem] {
	return func(yield func(encode.DataItem) bool) {
		dec := json.NewDecoder(r)
		dec.UseNumber()
		for line := 1; ; line++ {
			var raw map[string]any
			if err := dec.Decode(&raw); err != nil {
				if err != io.EOF {
					*errp = fmt.Errorf("item %d: %w", line, err)
				}
				return
			}
			item, err := loadItem(raw, specs)
			if err != nil {
				*errp = fmt.Errorf("item %d: %w", line, err)
				return
			}
			if !yield(item) {
				return
			}
		}
	}
}

// loadItem replaces file paths given for binary features with the decoded
// file, e.g. "cat.png" for an image feature.
func loadItem(raw map[string]any, specs []encode.FeatureSpec) (encode.DataItem, error) {
	item := encode.DataItem(raw)
	for _, spec := range specs {
		path, ok := item[spec.Name].(string)
		if !ok {
			continue
		}
		enc, err := encode.GetEncoder(spec.DType, spec.Shape)
		if err != nil {
			return nil, err
		}
		if _, binary := enc.(encode.BinaryEncoder); !binary {
			continue
		}
		fileEncoder, ok := encode.EncoderForExtension(filepath.Ext(path))
		if !ok {
			return nil, fmt.Errorf("feature %s: no encoder for file %s", spec.Name, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		value, err := fileEncoder.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("feature %s: %w", spec.Name, err)
		}
		item[spec.Name] = value
	}
	return item, nil
}

// renderItem converts decoded predictions back to JSON values, arrays and
// images as data URLs.
func renderItem(item encode.DataItem) (map[string]any, error) {
	rendered := make(map[string]any, len(item))
	for name, value := range item {
		enc, ok := encode.EncoderForValue(value)
		if !ok {
			return nil, fmt.Errorf("feature %s: unsupported value %T", name, value)
		}
		encoded, err := enc.EncodeJSON(value)
		if err != nil {
			return nil, fmt.Errorf("feature %s: %w", name, err)
		}
		rendered[name] = encoded
	}
	return rendered, nil
}

func runSchema(ctx context.Context, out io.Writer) error {
	d, err := deployment.NewFromEnv(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string][]encode.FeatureSpec{
		"input":  d.InputSpecs(),
		"output": d.OutputSpecs(),
	})
}
