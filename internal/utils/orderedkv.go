package utils

import (
	"bytes"
	"encoding/json"
	"sort"
)

type OrderedKV[T any] struct {
	Value T
	Order int64
}

// OrderedKVMap marshals to a JSON object whose keys follow insertion order.
type OrderedKVMap[T any] map[string]OrderedKV[T]

func (om OrderedKVMap[T]) Keys() []string {
	pairs := om.sorted()
	keys := make([]string, len(pairs))
	for i, p := range pairs {
		keys[i] = p.key
	}
	return keys
}

func (om OrderedKVMap[T]) Get(key string) (T, bool) {
	kv, ok := om[key]
	return kv.Value, ok
}

func (om OrderedKVMap[T]) Set(key string, value T) {
	if kv, ok := om[key]; ok {
		om[key] = OrderedKV[T]{Value: value, Order: kv.Order}
		return
	}
	om[key] = OrderedKV[T]{Value: value, Order: int64(len(om))}
}

type pair[T any] struct {
	key   string
	value T
	order int64
}

func (om OrderedKVMap[T]) sorted() []pair[T] {
	pairs := make([]pair[T], 0, len(om))
	for k, v := range om {
		pairs = append(pairs, pair[T]{
			key:   k,
			value: v.Value,
			order: v.Order,
		})
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].order < pairs[j].order
	})
	return pairs
}

func (om OrderedKVMap[T]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range om.sorted() {
		if i > 0 {
			buf.WriteByte(',')
		}

		keyBytes, err := json.Marshal(p.key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valueBytes, err := json.Marshal(p.value)
		if err != nil {
			return nil, err
		}
		buf.Write(valueBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Counter counts occurrences and remembers the order keys were first seen.
type Counter struct {
	OrderedKVMap[int]
}

func NewCounter() *Counter {
	return &Counter{OrderedKVMap: OrderedKVMap[int]{}}
}

func (c *Counter) Add(key string) {
	n, _ := c.Get(key)
	c.Set(key, n+1)
}
