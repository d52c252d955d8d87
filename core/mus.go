// Copyright 2026 Quarry Labs
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


package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the types persisted by the storage layer. Times are
// encoded as unix microseconds so ordering survives serialization.

// FingerprintMUS serializes Fingerprint values.
var FingerprintMUS = fingerprintMUS{}

type fingerprintMUS struct{}

func (s fingerprintMUS) Marshal(v Fingerprint, bs []byte) (n int) {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (s fingerprintMUS) Unmarshal(bs []byte) (v Fingerprint, n int, err error) {
	num, n, err := varint.Uint64.Unmarshal(bs)
	return Fingerprint(num), n, err
}

func (s fingerprintMUS) Size(v Fingerprint) (size int) {
	return varint.Uint64.Size(uint64(v))
}

func (s fingerprintMUS) Skip(bs []byte) (n int, err error) {
	return varint.Uint64.Skip(bs)
}

var (
	vectorMUS   = ord.NewSliceSer[float32](varint.Float32)
	metadataMUS = ord.NewMapSer[string, string](ord.String, ord.String)
)

func marshalTime(t time.Time, bs []byte) (n int) {
	return varint.Int64.Marshal(t.UnixMicro(), bs)
}

func unmarshalTime(bs []byte) (t time.Time, n int, err error) {
	micro, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return time.Time{}, n, err
	}
	return time.UnixMicro(micro).UTC(), n, nil
}

func sizeTime(t time.Time) (size int) {
	return varint.Int64.Size(t.UnixMicro())
}

func skipTime(bs []byte) (n int, err error) {
	return varint.Int64.Skip(bs)
}

// DocumentMUS serializes Document values.
var DocumentMUS = documentMUS{}

type documentMUS struct{}

func (s documentMUS) Marshal(v Document, bs []byte) (n int) {
	n = FingerprintMUS.Marshal(v.Fingerprint, bs)
	n += ord.String.Marshal(v.Source, bs[n:])
	n += varint.Int.Marshal(int(v.Type), bs[n:])
	n += varint.Int64.Marshal(v.Size, bs[n:])
	n += marshalTime(v.DiscoveredAt, bs[n:])
	n += marshalTime(v.IndexedAt, bs[n:])
	n += metadataMUS.Marshal(v.Metadata, bs[n:])
	return n
}

func (s documentMUS) Unmarshal(bs []byte) (v Document, n int, err error) {
	var n1 int
	v.Fingerprint, n, err = FingerprintMUS.Unmarshal(bs)
	if err != nil {
		return v, n, err
	}
	v.Source, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return v, n, err
	}
	var docType int
	docType, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return v, n, err
	}
	v.Type = DocumentType(docType)
	v.Size, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return v, n, err
	}
	v.DiscoveredAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	if err != nil {
		return v, n, err
	}
	v.IndexedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	if err != nil {
		return v, n, err
	}
	v.Metadata, n1, err = metadataMUS.Unmarshal(bs[n:])
	n += n1
	return v, n, err
}

func (s documentMUS) Size(v Document) (size int) {
	size = FingerprintMUS.Size(v.Fingerprint)
	size += ord.String.Size(v.Source)
	size += varint.Int.Size(int(v.Type))
	size += varint.Int64.Size(v.Size)
	size += sizeTime(v.DiscoveredAt)
	size += sizeTime(v.IndexedAt)
	size += metadataMUS.Size(v.Metadata)
	return size
}

func (s documentMUS) Skip(bs []byte) (n int, err error) {
	var n1 int
	n, err = FingerprintMUS.Skip(bs)
	if err != nil {
		return n, err
	}
	for _, skip := range []func([]byte) (int, error){
		ord.String.Skip, varint.Int.Skip, varint.Int64.Skip,
		skipTime, skipTime, metadataMUS.Skip,
	} {
		n1, err = skip(bs[n:])
		n += n1
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// ChunkMUS serializes Chunk values.
var ChunkMUS = chunkMUS{}

type chunkMUS struct{}

func (s chunkMUS) Marshal(v Chunk, bs []byte) (n int) {
	n = FingerprintMUS.Marshal(v.DocFingerprint, bs)
	n += varint.Int.Marshal(v.Seq, bs[n:])
	n += ord.String.Marshal(v.Text, bs[n:])
	n += varint.Int.Marshal(v.Start, bs[n:])
	n += varint.Int.Marshal(v.End, bs[n:])
	n += varint.Int.Marshal(v.OverlapPrefix, bs[n:])
	n += vectorMUS.Marshal(v.Vector, bs[n:])
	return n
}

func (s chunkMUS) Unmarshal(bs []byte) (v Chunk, n int, err error) {
	var n1 int
	v.DocFingerprint, n, err = FingerprintMUS.Unmarshal(bs)
	if err != nil {
		return v, n, err
	}
	v.Seq, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return v, n, err
	}
	v.Text, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return v, n, err
	}
	v.Start, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return v, n, err
	}
	v.End, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return v, n, err
	}
	v.OverlapPrefix, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return v, n, err
	}
	v.Vector, n1, err = vectorMUS.Unmarshal(bs[n:])
	n += n1
	return v, n, err
}

func (s chunkMUS) Size(v Chunk) (size int) {
	size = FingerprintMUS.Size(v.DocFingerprint)
	size += varint.Int.Size(v.Seq)
	size += ord.String.Size(v.Text)
	size += varint.Int.Size(v.Start)
	size += varint.Int.Size(v.End)
	size += varint.Int.Size(v.OverlapPrefix)
	size += vectorMUS.Size(v.Vector)
	return size
}

func (s chunkMUS) Skip(bs []byte) (n int, err error) {
	var n1 int
	n, err = FingerprintMUS.Skip(bs)
	if err != nil {
		return n, err
	}
	for _, skip := range []func([]byte) (int, error){
		varint.Int.Skip, ord.String.Skip, varint.Int.Skip,
		varint.Int.Skip, varint.Int.Skip, vectorMUS.Skip,
	} {
		n1, err = skip(bs[n:])
		n += n1
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// ProcessMUS serializes Process values for the process journal.
var ProcessMUS = processMUS{}

type processMUS struct{}

func (s processMUS) Marshal(v Process, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += varint.Int.Marshal(int(v.Type), bs[n:])
	n += ord.String.Marshal(v.Name, bs[n:])
	n += varint.Int.Marshal(int(v.Status), bs[n:])
	n += varint.Int.Marshal(v.Progress, bs[n:])
	n += ord.String.Marshal(v.Message, bs[n:])
	n += metadataMUS.Marshal(v.Metadata, bs[n:])
	n += marshalTime(v.CreatedAt, bs[n:])
	n += marshalTime(v.UpdatedAt, bs[n:])
	return n
}

func (s processMUS) Unmarshal(bs []byte) (v Process, n int, err error) {
	var n1 int
	v.ID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return v, n, err
	}
	var ptype int
	ptype, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return v, n, err
	}
	v.Type = ProcessType(ptype)
	v.Name, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return v, n, err
	}
	var status int
	status, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return v, n, err
	}
	v.Status = ProcessStatus(status)
	v.Progress, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return v, n, err
	}
	v.Message, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return v, n, err
	}
	v.Metadata, n1, err = metadataMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return v, n, err
	}
	v.CreatedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	if err != nil {
		return v, n, err
	}
	v.UpdatedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	return v, n, err
}

func (s processMUS) Size(v Process) (size int) {
	size = ord.String.Size(v.ID)
	size += varint.Int.Size(int(v.Type))
	size += ord.String.Size(v.Name)
	size += varint.Int.Size(int(v.Status))
	size += varint.Int.Size(v.Progress)
	size += ord.String.Size(v.Message)
	size += metadataMUS.Size(v.Metadata)
	size += sizeTime(v.CreatedAt)
	size += sizeTime(v.UpdatedAt)
	return size
}

func (s processMUS) Skip(bs []byte) (n int, err error) {
	var n1 int
	n, err = ord.String.Skip(bs)
	if err != nil {
		return n, err
	}
	for _, skip := range []func([]byte) (int, error){
		varint.Int.Skip, ord.String.Skip, varint.Int.Skip,
		varint.Int.Skip, ord.String.Skip, metadataMUS.Skip,
		skipTime, skipTime,
	} {
		n1, err = skip(bs[n:])
		n += n1
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
