// Package chunk splits slices into fixed-size pieces so callers can bound
// the size of database statements and transactions.
package chunk

import "fmt"

// Split returns items partitioned into consecutive slices of at most size
// elements. The returned slices share the backing array of items. A nil or
// empty input yields no chunks.
func Split[T any](items []T, size int) ([][]T, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if len(items) == 0 {
		return nil, nil
	}

	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks, nil
}

// Process invokes fn once per chunk of at most size elements, in order, and
// stops at the first error.
func Process[T any](items []T, size int, fn func([]T) error) error {
	chunks, err := Split(items, size)
	if err != nil {
		return err
	}
	for _, c := range chunks {
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}
