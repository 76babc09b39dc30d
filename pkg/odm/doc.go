// Package odm declares typed document classes and converts their instances
// between validated in-memory values and ordered wire records (bson.D).
//
// A class is declared once, usually at package level:
//
//	var User = odm.NewDocument("User").
//		Field("name", odm.String()).
//		Field("age", odm.Int(odm.Optional(), odm.Default(0))).
//		Synonym("years", "age").
//		Meta(odm.Meta{"collection_name": "users"}).
//		MustBuild()
//
// Build walks the inheritance order (C3 over Extends), collects fields and
// synonyms into an ordered Schema, injects a required ObjectID "_id" field
// into document classes that declare none, and resolves Options from the
// class's own Meta. Fields are inherited; options are not.
//
// Documents are created from untrusted input with Class.FromData, which
// checks every field and reports all failures in one *ValidationError, or
// from stored data with Class.FromWire, which trusts its input and never
// fails. Document.ToWire is the inverse of FromWire.
//
// Classes and schemas are immutable once built. Documents are plain values
// and must not be mutated concurrently.
package odm
