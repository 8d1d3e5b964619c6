package variant

// Predicate tests an indexed site. A record is kept when the predicate
// returns true. Predicates are pure functions of the Site; applying or
// removing one never mutates the position index.
type Predicate func(Site) bool

// PassOnly keeps records whose FILTER column is PASS or unset.
func PassOnly() Predicate {
	return func(s Site) bool { return s.Pass }
}

// MinQual keeps records with quality >= q.
func MinQual(q float64) Predicate {
	return func(s Site) bool { return float64(s.Qual) >= q }
}

// BiallelicOnly keeps records with exactly one alternate allele.
func BiallelicOnly() Predicate {
	return func(s Site) bool { return s.Alleles == 1 }
}

// SNVOnly keeps single-nucleotide variants.
func SNVOnly() Predicate {
	return func(s Site) bool { return s.Kind == KindSNV }
}

// And keeps records accepted by every predicate.
func And(preds ...Predicate) Predicate {
	return func(s Site) bool {
		for _, p := range preds {
			if !p(s) {
				return false
			}
		}
		return true
	}
}

// Or keeps records accepted by at least one predicate.
func Or(preds ...Predicate) Predicate {
	return func(s Site) bool {
		for _, p := range preds {
			if p(s) {
				return true
			}
		}
		return false
	}
}

// Not inverts a predicate.
func Not(p Predicate) Predicate {
	return func(s Site) bool { return !p(s) }
}
