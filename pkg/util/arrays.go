package util

// Append creates a new slice containing the result of appending the given item
// onto the end of the given slice.  Observe that, unlike the built-in append()
// function, this will never modify the given slice.
//
//nolint:revive
func Append[T any](slice []T, item T) []T {
	n := len(slice)
	// Make space for new slice
	nslice := make([]T, n+1)
	// Copy existing values
	copy(nslice[:n], slice)
	// Set last value
	nslice[n] = item
	// Done
	return nslice
}

// AppendAll creates a new slice containing the result of appending the given
// items onto the end of the given slice.  Observe that, unlike the built-in
// append() function, this will never modify the given slice.
func AppendAll[T any](lhs []T, rhs ...T) []T {
	n := len(lhs)
	m := len(rhs)
	// Make space for new slice
	nslice := make([]T, n+m)
	// Copy left values
	copy(nslice[:n], lhs)
	// Copy right values
	copy(nslice[n:], rhs)
	// Done
	return nslice
}

// RemoveAt creates a new slice containing all elements of the given slice
// except that at the given index.
func RemoveAt[T any](slice []T, index int) []T {
	nslice := make([]T, 0, len(slice)-1)
	nslice = append(nslice, slice[:index]...)
	nslice = append(nslice, slice[index+1:]...)
	// Done
	return nslice
}

// ReplaceAt creates a new slice which is identical to the given slice, except
// that the element at the given index is replaced.
func ReplaceAt[T any](slice []T, index int, item T) []T {
	nslice := make([]T, len(slice))
	copy(nslice, slice)
	nslice[index] = item
	// Done
	return nslice
}
