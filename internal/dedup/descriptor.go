package dedup

import (
	"strconv"
	"strings"
)

// ContentKind labels what a message carries. A message with an
// attachment takes the attachment's kind, a plain message is KindText.
type ContentKind string

const (
	KindText      ContentKind = "text"
	KindPhoto     ContentKind = "photo"
	KindDocument  ContentKind = "document"
	KindVideo     ContentKind = "video"
	KindAudio     ContentKind = "audio"
	KindVoice     ContentKind = "voice"
	KindVideoNote ContentKind = "video_note"
	KindSticker   ContentKind = "sticker"
	KindAnimation ContentKind = "animation"
)

// Descriptor carries the content-bearing fields of one inbound message,
// already stripped of transport detail. Transports build one per
// message; Process consumes it and never retains it.
type Descriptor struct {
	Text        string
	Caption     string
	Media       []MediaRef
	Forwarded   bool
	AuthorID    int64
	AuthorIsBot bool
}

// MediaRef identifies one attachment by its stable unique id plus the
// metadata that distinguishes re-uploads of similar files. The
// interface is sealed; each kind declares only the fields it has.
// Transient per-delivery file ids must never be used here, they change
// between deliveries of identical content.
type MediaRef interface {
	Kind() ContentKind
	parts() []string
	fileSize() int64
}

// Photo references the largest rendition of a photo.
type Photo struct {
	UniqueID string
	Size     int64
}

func (p Photo) Kind() ContentKind { return KindPhoto }
func (p Photo) fileSize() int64   { return p.Size }

func (p Photo) parts() []string {
	out := []string{"photo:" + p.UniqueID}
	if p.Size > 0 {
		out = append(out, "size:"+strconv.FormatInt(p.Size, 10))
	}
	return out
}

type Document struct {
	UniqueID string
	Filename string
	Size     int64
}

func (d Document) Kind() ContentKind { return KindDocument }
func (d Document) fileSize() int64   { return d.Size }

func (d Document) parts() []string {
	out := []string{"document:" + d.UniqueID}
	if d.Filename != "" {
		out = append(out, "filename:"+strings.ToLower(d.Filename))
	}
	if d.Size > 0 {
		out = append(out, "size:"+strconv.FormatInt(d.Size, 10))
	}
	return out
}

type Video struct {
	UniqueID string
	Duration int
	Size     int64
}

func (v Video) Kind() ContentKind { return KindVideo }
func (v Video) fileSize() int64   { return v.Size }

func (v Video) parts() []string {
	out := []string{"video:" + v.UniqueID}
	if v.Duration > 0 {
		out = append(out, "duration:"+strconv.Itoa(v.Duration))
	}
	if v.Size > 0 {
		out = append(out, "size:"+strconv.FormatInt(v.Size, 10))
	}
	return out
}

type Audio struct {
	UniqueID string
	Duration int
	Title    string
}

func (a Audio) Kind() ContentKind { return KindAudio }
func (a Audio) fileSize() int64   { return 0 }

func (a Audio) parts() []string {
	out := []string{"audio:" + a.UniqueID}
	if a.Duration > 0 {
		out = append(out, "duration:"+strconv.Itoa(a.Duration))
	}
	if a.Title != "" {
		out = append(out, "title:"+strings.ToLower(a.Title))
	}
	return out
}

type Voice struct {
	UniqueID string
	Duration int
}

func (v Voice) Kind() ContentKind { return KindVoice }
func (v Voice) fileSize() int64   { return 0 }

func (v Voice) parts() []string {
	out := []string{"voice:" + v.UniqueID}
	if v.Duration > 0 {
		out = append(out, "duration:"+strconv.Itoa(v.Duration))
	}
	return out
}

type VideoNote struct {
	UniqueID string
	Duration int
}

func (v VideoNote) Kind() ContentKind { return KindVideoNote }
func (v VideoNote) fileSize() int64   { return 0 }

func (v VideoNote) parts() []string {
	out := []string{"video_note:" + v.UniqueID}
	if v.Duration > 0 {
		out = append(out, "duration:"+strconv.Itoa(v.Duration))
	}
	return out
}

type Sticker struct {
	UniqueID string
	SetName  string
}

func (s Sticker) Kind() ContentKind { return KindSticker }
func (s Sticker) fileSize() int64   { return 0 }

func (s Sticker) parts() []string {
	out := []string{"sticker:" + s.UniqueID}
	if s.SetName != "" {
		out = append(out, "set:"+s.SetName)
	}
	return out
}

type Animation struct {
	UniqueID string
	Size     int64
}

func (a Animation) Kind() ContentKind { return KindAnimation }
func (a Animation) fileSize() int64   { return a.Size }

func (a Animation) parts() []string {
	out := []string{"animation:" + a.UniqueID}
	if a.Size > 0 {
		out = append(out, "size:"+strconv.FormatInt(a.Size, 10))
	}
	return out
}
