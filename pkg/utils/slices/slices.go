package slices

// map each element in sli.
//
// args:
//   - sli : slice of `T`s
//   - mapper : mapping function from T to R
//
// return:
//
//	slice of `R`s.
//	each element indexed `N` is given with `mapper(sli[N])` .
func Map[T any, R any](sli []T, mapper func(v T) R) []R {
	ret := make([]R, len(sli))
	for nth, v := range sli {
		ret[nth] = mapper(v)
	}
	return ret
}

// keep elements which pred accepts, preserving order.
func Filter[T any](sli []T, pred func(v T) bool) []T {
	ret := []T{}
	for _, v := range sli {
		if pred(v) {
			ret = append(ret, v)
		}
	}
	return ret
}

// group elements of sli by key given with pair.
func ToMultiMap[T any, K comparable, R any](sli []T, pair func(v T) (K, R)) map[K][]R {
	m := map[K][]R{}
	for _, i := range sli {
		k, v := pair(i)
		m[k] = append(m[k], v)
	}
	return m
}

// flatten map to slice of its keys.
//
// Ordering is not deterministic.
func KeysOf[T any, K comparable](m map[K]T) []K {
	sli := make([]K, 0, len(m))
	for k := range m {
		sli = append(sli, k)
	}
	return sli
}
