package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/gogotex/docmodel/pkg/odm"
)

var validateCmd = &cobra.Command{
	Use:   "validate <class> <file.json>",
	Short: "Validate a JSON document against a declared class",
	Long: `Validate a JSON document against a declared class.

On success the wire record is printed as Extended JSON. On failure the
errors are printed as JSON, keyed by field, and the command fails.`,
	Args: cobra.ExactArgs(2),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// errInvalid is returned after the errors have been printed.
var errInvalid = errors.New("document is not valid")

func runValidate(cmd *cobra.Command, args []string) error {
	if _, err := loadModels(envModelsPath()); err != nil {
		return err
	}
	class, ok := odm.Lookup(args[0])
	if !ok {
		return fmt.Errorf("%w: %s", odm.ErrUnknownClass, args[0])
	}
	f, err := os.Open(args[1])
	if err != nil {
		return err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return fmt.Errorf("%s: %w", args[1], err)
	}

	out := cmd.OutOrStdout()
	doc, err := class.FromData(data)
	if err != nil {
		var verr *odm.ValidationError
		if !errors.As(err, &verr) {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(verr.AsMap()); err != nil {
			return err
		}
		return errInvalid
	}
	b, err := bson.MarshalExtJSONIndent(doc.ToWire(), false, false, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(b))
	return nil
}
