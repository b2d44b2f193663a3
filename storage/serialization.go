// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/docent/core"
)

// Stored records are serialized with the MUS format, field by field in
// declaration order. Timestamps are stored as Unix microseconds.

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	v, _, err := varint.Uint64.Unmarshal(data)
	return core.ID(v), err
}

// MarshalMessage serializes a Message to bytes.
func MarshalMessage(message *core.Message) []byte {
	size := varint.Int.Size(int(message.Role)) +
		ord.String.Size(message.Content) +
		varint.Int64.Size(message.Timestamp.UnixMicro())
	buf := make([]byte, size)
	n := varint.Int.Marshal(int(message.Role), buf)
	n += ord.String.Marshal(message.Content, buf[n:])
	varint.Int64.Marshal(message.Timestamp.UnixMicro(), buf[n:])
	return buf
}

// UnmarshalMessage deserializes a Message from bytes.
func UnmarshalMessage(data []byte) (*core.Message, error) {
	role, n, err := varint.Int.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	content, n1, err := ord.String.Unmarshal(data[n:])
	if err != nil {
		return nil, err
	}
	n += n1
	micros, _, err := varint.Int64.Unmarshal(data[n:])
	if err != nil {
		return nil, err
	}
	return &core.Message{
		Role:      core.Role(role),
		Content:   content,
		Timestamp: time.UnixMicro(micros).UTC(),
	}, nil
}

// MarshalChunk serializes a Chunk to bytes.
func MarshalChunk(chunk *core.Chunk) []byte {
	size := varint.Uint64.Size(uint64(chunk.Id)) +
		ord.String.Size(chunk.Text) +
		sizeStringMap(chunk.Metadata) +
		sizeFloats(chunk.Vector)
	buf := make([]byte, size)
	n := varint.Uint64.Marshal(uint64(chunk.Id), buf)
	n += ord.String.Marshal(chunk.Text, buf[n:])
	n += marshalStringMap(chunk.Metadata, buf[n:])
	marshalFloats(chunk.Vector, buf[n:])
	return buf
}

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	id, n, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	text, n1, err := ord.String.Unmarshal(data[n:])
	if err != nil {
		return nil, err
	}
	n += n1
	metadata, n2, err := unmarshalStringMap(data[n:])
	if err != nil {
		return nil, err
	}
	n += n2
	vector, _, err := unmarshalFloats(data[n:])
	if err != nil {
		return nil, err
	}
	return &core.Chunk{
		Id:       core.ID(id),
		Text:     text,
		Metadata: metadata,
		Vector:   vector,
	}, nil
}

// MarshalCacheEntry serializes a CacheEntry to bytes.
func MarshalCacheEntry(entry *core.CacheEntry) []byte {
	size := ord.String.Size(entry.Query) +
		ord.String.Size(entry.Answer) +
		sizeFloats(entry.Embedding) +
		varint.Int64.Size(entry.CreatedAt.UnixMicro())
	buf := make([]byte, size)
	n := ord.String.Marshal(entry.Query, buf)
	n += ord.String.Marshal(entry.Answer, buf[n:])
	n += marshalFloats(entry.Embedding, buf[n:])
	varint.Int64.Marshal(entry.CreatedAt.UnixMicro(), buf[n:])
	return buf
}

// UnmarshalCacheEntry deserializes a CacheEntry from bytes.
func UnmarshalCacheEntry(data []byte) (*core.CacheEntry, error) {
	query, n, err := ord.String.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	answer, n1, err := ord.String.Unmarshal(data[n:])
	if err != nil {
		return nil, err
	}
	n += n1
	embedding, n2, err := unmarshalFloats(data[n:])
	if err != nil {
		return nil, err
	}
	n += n2
	micros, _, err := varint.Int64.Unmarshal(data[n:])
	if err != nil {
		return nil, err
	}
	return &core.CacheEntry{
		Query:     query,
		Answer:    answer,
		Embedding: embedding,
		CreatedAt: time.UnixMicro(micros).UTC(),
	}, nil
}

// float32 slices use a varint length prefix followed by fixed-width elements.

func sizeFloats(v []float32) int {
	size := varint.PositiveInt.Size(len(v))
	for _, f := range v {
		size += raw.Float32.Size(f)
	}
	return size
}

func marshalFloats(v []float32, buf []byte) int {
	n := varint.PositiveInt.Marshal(len(v), buf)
	for _, f := range v {
		n += raw.Float32.Marshal(f, buf[n:])
	}
	return n
}

func unmarshalFloats(data []byte) ([]float32, int, error) {
	length, n, err := varint.PositiveInt.Unmarshal(data)
	if err != nil {
		return nil, n, err
	}
	if length == 0 {
		return nil, n, nil
	}
	v := make([]float32, length)
	for i := 0; i < length; i++ {
		f, n1, err := raw.Float32.Unmarshal(data[n:])
		if err != nil {
			return nil, n, err
		}
		v[i] = f
		n += n1
	}
	return v, n, nil
}

// string maps use a varint pair count followed by key/value strings.

func sizeStringMap(m map[string]string) int {
	size := varint.PositiveInt.Size(len(m))
	for k, v := range m {
		size += ord.String.Size(k) + ord.String.Size(v)
	}
	return size
}

func marshalStringMap(m map[string]string, buf []byte) int {
	n := varint.PositiveInt.Marshal(len(m), buf)
	for k, v := range m {
		n += ord.String.Marshal(k, buf[n:])
		n += ord.String.Marshal(v, buf[n:])
	}
	return n
}

func unmarshalStringMap(data []byte) (map[string]string, int, error) {
	length, n, err := varint.PositiveInt.Unmarshal(data)
	if err != nil {
		return nil, n, err
	}
	if length == 0 {
		return nil, n, nil
	}
	m := make(map[string]string, length)
	for i := 0; i < length; i++ {
		k, n1, err := ord.String.Unmarshal(data[n:])
		if err != nil {
			return nil, n, err
		}
		n += n1
		v, n2, err := ord.String.Unmarshal(data[n:])
		if err != nil {
			return nil, n, err
		}
		n += n2
		m[k] = v
	}
	return m, n, nil
}
