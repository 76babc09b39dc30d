package main

import (
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"
	"gopkg.in/yaml.v3"

	"github.com/gogotex/docmodel/pkg/odm"
)

var schemaCmd = &cobra.Command{
	Use:   "schema [class...]",
	Short: "Print the resolved schema and options of declared classes",
	RunE:  runSchema,
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}

type fieldView struct {
	Name     string `yaml:"name"`
	WireName string `yaml:"wire_name,omitempty"`
	Type     string `yaml:"type"`
	Required bool   `yaml:"required"`
}

type classView struct {
	Name       string            `yaml:"name"`
	Kind       string            `yaml:"kind"`
	MRO        []string          `yaml:"mro"`
	Fields     []fieldView       `yaml:"fields"`
	Synonyms   map[string]string `yaml:"synonyms,omitempty"`
	Collection string            `yaml:"collection,omitempty"`
	Query      string            `yaml:"default_query,omitempty"`
	Sort       string            `yaml:"default_sort,omitempty"`
	Indexes    int               `yaml:"indexes,omitempty"`
}

type typer interface{ Type() string }

func describe(c *odm.Class) classView {
	v := classView{Name: c.Name(), Kind: c.Kind().String(), Synonyms: c.Schema().Synonyms()}
	for _, b := range c.MRO() {
		v.MRO = append(v.MRO, b.Name())
	}
	for name, f := range c.Schema().All() {
		fv := fieldView{Name: name, Type: "any", Required: f.Required()}
		if t, ok := f.(typer); ok {
			fv.Type = t.Type()
		}
		if f.WireName() != name {
			fv.WireName = f.WireName()
		}
		v.Fields = append(v.Fields, fv)
	}
	if c.Kind() == odm.KindDocument {
		o := c.Options()
		v.Collection = o.CollectionName
		v.Query = extJSON(o.DefaultQuery)
		v.Sort = extJSON(o.DefaultSort)
		v.Indexes = len(o.Indexes)
	}
	return v
}

func extJSON(d bson.D) string {
	if len(d) == 0 {
		return ""
	}
	b, err := bson.MarshalExtJSON(d, false, false)
	if err != nil {
		return err.Error()
	}
	return string(b)
}

func runSchema(cmd *cobra.Command, args []string) error {
	classes, err := loadModels(envModelsPath())
	if err != nil {
		return err
	}
	want := map[string]bool{}
	for _, a := range args {
		want[a] = true
	}
	views := []classView{}
	for _, c := range classes {
		if len(want) > 0 && !want[c.Name()] {
			continue
		}
		views = append(views, describe(c))
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(views)
}
