package odm

import "strings"

// linearize computes the C3 resolution order for a class with the given
// direct bases: the class itself first, then its ancestors, each appearing
// once and never before any of its subclasses.
func linearize(name string, self *Class, bases []*Class) ([]*Class, error) {
	seqs := make([][]*Class, 0, len(bases)+1)
	for _, b := range bases {
		seqs = append(seqs, append([]*Class(nil), b.mro...))
	}
	seqs = append(seqs, append([]*Class(nil), bases...))

	out := []*Class{self}
	for {
		seqs = dropEmpty(seqs)
		if len(seqs) == 0 {
			return out, nil
		}
		var head *Class
		for _, seq := range seqs {
			if !inTail(seq[0], seqs) {
				head = seq[0]
				break
			}
		}
		if head == nil {
			return nil, configErrorf(name, "cannot create a consistent inheritance order for bases %s", classNames(bases))
		}
		out = append(out, head)
		for i, seq := range seqs {
			if seq[0] == head {
				seqs[i] = seq[1:]
			}
		}
	}
}

func dropEmpty(seqs [][]*Class) [][]*Class {
	out := seqs[:0]
	for _, s := range seqs {
		if len(s) > 0 {
			out = append(out, s)
		}
	}
	return out
}

func inTail(c *Class, seqs [][]*Class) bool {
	for _, seq := range seqs {
		for _, x := range seq[1:] {
			if x == c {
				return true
			}
		}
	}
	return false
}

func classNames(cs []*Class) string {
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = c.name
	}
	return strings.Join(names, ", ")
}
