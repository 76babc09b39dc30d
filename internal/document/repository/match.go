package repository

import (
	"bytes"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Filter evaluation for stores without a query engine. Supports equality
// (including null for missing fields and array membership), $and, $or,
// $nor and the $eq, $ne, $gt, $gte, $lt, $lte, $in, $nin and $exists
// operators on dotted paths.

func match(rec bson.D, filter bson.D) bool {
	for _, e := range filter {
		switch e.Key {
		case "$and", "$or", "$nor":
			subs, ok := docList(e.Value)
			if !ok {
				return false
			}
			if !matchLogical(e.Key, rec, subs) {
				return false
			}
		default:
			if !matchCond(resolve(rec, e.Key), e.Value) {
				return false
			}
		}
	}
	return true
}

func matchLogical(op string, rec bson.D, subs []bson.D) bool {
	switch op {
	case "$and":
		for _, s := range subs {
			if !match(rec, s) {
				return false
			}
		}
		return true
	case "$or":
		for _, s := range subs {
			if match(rec, s) {
				return true
			}
		}
		return false
	}
	for _, s := range subs {
		if match(rec, s) {
			return false
		}
	}
	return true
}

func matchCond(vals []any, cond any) bool {
	ops, isOps := operators(cond)
	if !isOps {
		return anyEqual(vals, cond)
	}
	for _, op := range ops {
		if !matchOp(vals, op.Key, op.Value) {
			return false
		}
	}
	return true
}

func matchOp(vals []any, op string, arg any) bool {
	switch op {
	case "$eq":
		return anyEqual(vals, arg)
	case "$ne":
		return !anyEqual(vals, arg)
	case "$gt", "$gte", "$lt", "$lte":
		for _, v := range expand(vals) {
			c, ok := compareValues(v, arg)
			if !ok {
				continue
			}
			if (op == "$gt" && c > 0) || (op == "$gte" && c >= 0) || (op == "$lt" && c < 0) || (op == "$lte" && c <= 0) {
				return true
			}
		}
		return false
	case "$in", "$nin":
		list, ok := asArray(arg)
		if !ok {
			return false
		}
		found := false
		for _, want := range list {
			if anyEqual(vals, want) {
				found = true
				break
			}
		}
		return found == (op == "$in")
	case "$exists":
		want, _ := arg.(bool)
		return (len(vals) > 0) == want
	}
	return false
}

// operators returns cond as a list of $-operators when every key of cond
// starts with '$'.
func operators(cond any) (bson.D, bool) {
	d, ok := asDoc(cond)
	if !ok || len(d) == 0 {
		return nil, false
	}
	for _, e := range d {
		if !strings.HasPrefix(e.Key, "$") {
			return nil, false
		}
	}
	return d, true
}

func anyEqual(vals []any, want any) bool {
	if want == nil && len(vals) == 0 {
		return true
	}
	for _, v := range vals {
		if equalValues(v, want) {
			return true
		}
		if arr, ok := asArray(v); ok {
			for _, item := range arr {
				if equalValues(item, want) {
					return true
				}
			}
		}
	}
	return false
}

// expand flattens array values one level, the way comparison operators see
// them.
func expand(vals []any) []any {
	out := make([]any, 0, len(vals))
	for _, v := range vals {
		if arr, ok := asArray(v); ok {
			out = append(out, arr...)
			continue
		}
		out = append(out, v)
	}
	return out
}

// resolve returns the values found at a dotted path. Arrays on the way are
// traversed element-wise unless the next segment is an index.
func resolve(rec bson.D, path string) []any {
	return walk(rec, strings.Split(path, "."))
}

func walk(v any, parts []string) []any {
	if len(parts) == 0 {
		return []any{v}
	}
	if d, ok := asDoc(v); ok {
		for _, e := range d {
			if e.Key == parts[0] {
				return walk(e.Value, parts[1:])
			}
		}
		return nil
	}
	if arr, ok := asArray(v); ok {
		if i, err := strconv.Atoi(parts[0]); err == nil {
			if i >= 0 && i < len(arr) {
				return walk(arr[i], parts[1:])
			}
			return nil
		}
		var out []any
		for _, item := range arr {
			out = append(out, walk(item, parts)...)
		}
		return out
	}
	return nil
}

func equalValues(a, b any) bool {
	if c, ok := compareValues(a, b); ok {
		return c == 0
	}
	if da, ok := asDoc(a); ok {
		db, ok := asDoc(b)
		if !ok || len(da) != len(db) {
			return false
		}
		for i := range da {
			if da[i].Key != db[i].Key || !equalValues(da[i].Value, db[i].Value) {
				return false
			}
		}
		return true
	}
	if aa, ok := asArray(a); ok {
		ab, ok := asArray(b)
		if !ok || len(aa) != len(ab) {
			return false
		}
		for i := range aa {
			if !equalValues(aa[i], ab[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders two scalars of the same family: numbers, strings,
// times, object ids and booleans.
func compareValues(a, b any) (int, bool) {
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			}
			return 0, true
		}
		return 0, false
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
	case primitive.ObjectID:
		if y, ok := b.(primitive.ObjectID); ok {
			return bytes.Compare(x[:], y[:]), true
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0, true
			case !x:
				return -1, true
			}
			return 1, true
		}
	}
	if ta, ok := timeOf(a); ok {
		if tb, ok := timeOf(b); ok {
			return ta.Compare(tb), true
		}
	}
	return 0, false
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}

func timeOf(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case primitive.DateTime:
		return t.Time(), true
	}
	return time.Time{}, false
}

func asDoc(v any) (bson.D, bool) {
	switch d := v.(type) {
	case bson.D:
		return d, true
	case bson.M:
		return sortedDoc(d), true
	case map[string]any:
		return sortedDoc(d), true
	}
	return nil, false
}

func sortedDoc(m map[string]any) bson.D {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(bson.D, 0, len(keys))
	for _, k := range keys {
		out = append(out, bson.E{Key: k, Value: m[k]})
	}
	return out
}

func asArray(v any) ([]any, bool) {
	switch a := v.(type) {
	case bson.A:
		return a, true
	case []any:
		return a, true
	}
	return nil, false
}

func docList(v any) ([]bson.D, bool) {
	arr, ok := asArray(v)
	if !ok {
		return nil, false
	}
	out := make([]bson.D, 0, len(arr))
	for _, item := range arr {
		d, ok := asDoc(item)
		if !ok {
			return nil, false
		}
		out = append(out, d)
	}
	return out, true
}

// sortRecords orders records by spec; missing values sort first in
// ascending order.
func sortRecords(recs []bson.D, spec bson.D) {
	if len(spec) == 0 {
		return
	}
	sort.SliceStable(recs, func(i, j int) bool {
		for _, e := range spec {
			dir := 1
			if n, ok := number(e.Value); ok && n < 0 {
				dir = -1
			}
			c := compareMissing(resolve(recs[i], e.Key), resolve(recs[j], e.Key))
			if c != 0 {
				return c*dir < 0
			}
		}
		return false
	})
}

func compareMissing(a, b []any) int {
	switch {
	case len(a) == 0 && len(b) == 0:
		return 0
	case len(a) == 0:
		return -1
	case len(b) == 0:
		return 1
	}
	c, _ := compareValues(a[0], b[0])
	return c
}

// applyUpdate returns a copy of rec with the $set, $unset and $inc operators
// of update applied. The identifier cannot be changed.
func applyUpdate(rec bson.D, update bson.D) (bson.D, error) {
	out := append(bson.D(nil), rec...)
	if len(update) == 0 {
		return nil, fmt.Errorf("empty update")
	}
	for _, op := range update {
		args, ok := asDoc(op.Value)
		if !ok {
			return nil, fmt.Errorf("%s: argument must be a document", op.Key)
		}
		for _, a := range args {
			if a.Key == "_id" || strings.HasPrefix(a.Key, "_id.") {
				return nil, fmt.Errorf("%s: the _id field cannot be modified", op.Key)
			}
			parts := strings.Split(a.Key, ".")
			switch op.Key {
			case "$set":
				out = setPath(out, parts, a.Value)
			case "$unset":
				out = unsetPath(out, parts)
			case "$inc":
				delta, ok := number(a.Value)
				if !ok {
					return nil, fmt.Errorf("$inc: %s: increment must be a number", a.Key)
				}
				cur := resolve(out, a.Key)
				var next any = a.Value
				if len(cur) > 0 {
					n, ok := number(cur[0])
					if !ok {
						return nil, fmt.Errorf("$inc: %s: field is not a number", a.Key)
					}
					next = addNumbers(cur[0], n, a.Value, delta)
				}
				out = setPath(out, parts, next)
			default:
				return nil, fmt.Errorf("unsupported update operator %q", op.Key)
			}
		}
	}
	return out, nil
}

func addNumbers(cur any, n float64, inc any, delta float64) any {
	_, curFloat := cur.(float64)
	_, incFloat := inc.(float64)
	if curFloat || incFloat {
		return n + delta
	}
	return int64(n) + int64(delta)
}

func setPath(d bson.D, parts []string, v any) bson.D {
	out := append(bson.D(nil), d...)
	for i, e := range out {
		if e.Key != parts[0] {
			continue
		}
		if len(parts) == 1 {
			out[i].Value = v
			return out
		}
		child, _ := asDoc(e.Value)
		out[i].Value = setPath(child, parts[1:], v)
		return out
	}
	if len(parts) == 1 {
		return append(out, bson.E{Key: parts[0], Value: v})
	}
	return append(out, bson.E{Key: parts[0], Value: setPath(nil, parts[1:], v)})
}

func unsetPath(d bson.D, parts []string) bson.D {
	out := make(bson.D, 0, len(d))
	for _, e := range d {
		if e.Key != parts[0] {
			out = append(out, e)
			continue
		}
		if len(parts) == 1 {
			continue
		}
		if child, ok := asDoc(e.Value); ok {
			e.Value = unsetPath(child, parts[1:])
		}
		out = append(out, e)
	}
	return out
}
