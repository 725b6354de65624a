package datastore

import (
	"math"
	"sort"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// message is implemented by every request and response type.
type message interface {
	marshalWire(b []byte) []byte
	unmarshalWire(b []byte) error
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendInt64(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	if v == 0 && !math.Signbit(v) {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendEmbedded(b []byte, num protowire.Number, body []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, body)
}

// appendTimestamp writes a google.protobuf.Timestamp.
func appendTimestamp(b []byte, num protowire.Number, t time.Time) []byte {
	var ts []byte
	ts = appendInt64(ts, 1, t.Unix())
	ts = appendInt64(ts, 2, int64(t.Nanosecond()))
	return appendEmbedded(b, num, ts)
}

// walk calls fn for every field in b. fn returns the number of bytes it
// consumed, or 0 to have the field skipped as unknown.
func walk(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return protowire.ParseError(m)
		}
		b = b[m:]
	}
	return nil
}

func consumeString(typ protowire.Type, b []byte, dst *string) int {
	if typ != protowire.BytesType {
		return 0
	}
	v, n := protowire.ConsumeString(b)
	if n >= 0 {
		*dst = v
	}
	return n
}

func consumeInt64(typ protowire.Type, b []byte, dst *int64) int {
	if typ != protowire.VarintType {
		return 0
	}
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = int64(v)
	}
	return n
}

func consumeInt32(typ protowire.Type, b []byte, dst *int32) int {
	var v int64
	n := consumeInt64(typ, b, &v)
	if n > 0 {
		*dst = int32(v)
	}
	return n
}

func consumeBool(typ protowire.Type, b []byte, dst *bool) int {
	if typ != protowire.VarintType {
		return 0
	}
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = protowire.DecodeBool(v)
	}
	return n
}

func consumeDouble(typ protowire.Type, b []byte, dst *float64) int {
	if typ != protowire.Fixed64Type {
		return 0
	}
	v, n := protowire.ConsumeFixed64(b)
	if n >= 0 {
		*dst = math.Float64frombits(v)
	}
	return n
}

// consumeEmbedded hands the body of a length-delimited field to fn.
func consumeEmbedded(typ protowire.Type, b []byte, fn func(body []byte) error) (int, error) {
	if typ != protowire.BytesType {
		return 0, nil
	}
	body, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return n, nil
	}
	return n, fn(body)
}

func consumeTimestamp(typ protowire.Type, b []byte, dst *time.Time) (int, error) {
	return consumeEmbedded(typ, b, func(body []byte) error {
		var secs, nanos int64
		err := walk(body, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			switch num {
			case 1:
				return consumeInt64(typ, b, &secs), nil
			case 2:
				return consumeInt64(typ, b, &nanos), nil
			}
			return 0, nil
		})
		if err != nil {
			return err
		}
		*dst = time.Unix(secs, nanos).UTC()
		return nil
	})
}

// Point

func (p *Point) marshalWire(b []byte) []byte {
	b = appendDouble(b, 1, p.Lat)
	return appendDouble(b, 2, p.Lon)
}

func (p *Point) unmarshalWire(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeDouble(typ, b, &p.Lat), nil
		case 2:
			return consumeDouble(typ, b, &p.Lon), nil
		}
		return 0, nil
	})
}

// Polygon

func (p *Polygon) marshalWire(b []byte) []byte {
	for i := range p.Points {
		b = appendEmbedded(b, 1, p.Points[i].marshalWire(nil))
	}
	return b
}

func (p *Polygon) unmarshalWire(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 {
			return 0, nil
		}
		return consumeEmbedded(typ, b, func(body []byte) error {
			var pt Point
			if err := pt.unmarshalWire(body); err != nil {
				return err
			}
			p.Points = append(p.Points, pt)
			return nil
		})
	})
}

// BoundingBox

func (bb *BoundingBox) marshalWire(b []byte) []byte {
	b = appendDouble(b, 1, bb.Left)
	b = appendDouble(b, 2, bb.Bottom)
	b = appendDouble(b, 3, bb.Right)
	return appendDouble(b, 4, bb.Top)
}

func (bb *BoundingBox) unmarshalWire(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeDouble(typ, b, &bb.Left), nil
		case 2:
			return consumeDouble(typ, b, &bb.Bottom), nil
		case 3:
			return consumeDouble(typ, b, &bb.Right), nil
		case 4:
			return consumeDouble(typ, b, &bb.Top), nil
		}
		return 0, nil
	})
}

// TimeInterval

func (ti *TimeInterval) marshalWire(b []byte) []byte {
	b = appendTimestamp(b, 1, ti.Start)
	return appendTimestamp(b, 2, ti.End)
}

func (ti *TimeInterval) unmarshalWire(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeTimestamp(typ, b, &ti.Start)
		case 2:
			return consumeTimestamp(typ, b, &ti.End)
		}
		return 0, nil
	})
}

// Link

func (l *Link) marshalWire(b []byte) []byte {
	b = appendString(b, 1, l.Href)
	b = appendString(b, 2, l.Rel)
	b = appendString(b, 3, l.Type)
	b = appendString(b, 4, l.Hreflang)
	return appendString(b, 5, l.Title)
}

func (l *Link) unmarshalWire(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &l.Href), nil
		case 2:
			return consumeString(typ, b, &l.Rel), nil
		case 3:
			return consumeString(typ, b, &l.Type), nil
		case 4:
			return consumeString(typ, b, &l.Hreflang), nil
		case 5:
			return consumeString(typ, b, &l.Title), nil
		}
		return 0, nil
	})
}

// TSMetadata

func (m *TSMetadata) stringFields() []*string {
	// Indexed by field number, 1 through 23.
	return []*string{
		nil,
		&m.Version, &m.Type, &m.Title, &m.Summary, &m.Keywords,
		&m.KeywordsVocabulary, &m.License, &m.Conventions, &m.NamingAuthority, &m.CreatorType,
		&m.CreatorName, &m.CreatorEmail, &m.CreatorURL, &m.Institution, &m.Project,
		&m.Source, &m.Platform, &m.PlatformVocabulary, &m.PlatformName, &m.StandardName,
		&m.Unit, &m.Instrument, &m.InstrumentVocabulary,
	}
}

func (m *TSMetadata) marshalWire(b []byte) []byte {
	fields := m.stringFields()
	for num := 1; num < len(fields); num++ {
		b = appendString(b, protowire.Number(num), *fields[num])
	}
	for i := range m.Links {
		b = appendEmbedded(b, 24, m.Links[i].marshalWire(nil))
	}
	b = appendInt64(b, 25, m.Level)
	b = appendInt64(b, 26, m.Period)
	b = appendString(b, 27, m.Function)
	b = appendString(b, 28, m.ParameterName)
	return appendString(b, 29, m.TimeseriesID)
}

func (m *TSMetadata) unmarshalWire(b []byte) error {
	fields := m.stringFields()
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num > 0 && int(num) < len(fields) {
			return consumeString(typ, b, fields[num]), nil
		}
		switch num {
		case 24:
			return consumeEmbedded(typ, b, func(body []byte) error {
				var l Link
				if err := l.unmarshalWire(body); err != nil {
					return err
				}
				m.Links = append(m.Links, l)
				return nil
			})
		case 25:
			return consumeInt64(typ, b, &m.Level), nil
		case 26:
			return consumeInt64(typ, b, &m.Period), nil
		case 27:
			return consumeString(typ, b, &m.Function), nil
		case 28:
			return consumeString(typ, b, &m.ParameterName), nil
		case 29:
			return consumeString(typ, b, &m.TimeseriesID), nil
		}
		return 0, nil
	})
}

// ObsMetadata

func (m *ObsMetadata) marshalWire(b []byte) []byte {
	b = appendString(b, 1, m.ID)
	if m.GeoPoint != nil {
		b = appendEmbedded(b, 2, m.GeoPoint.marshalWire(nil))
	}
	if !m.Pubtime.IsZero() {
		b = appendTimestamp(b, 4, m.Pubtime)
	}
	b = appendString(b, 5, m.DataID)
	b = appendString(b, 6, m.History)
	b = appendString(b, 7, m.MetadataID)
	if !m.ObstimeInstant.IsZero() {
		b = appendTimestamp(b, 8, m.ObstimeInstant)
	}
	b = appendString(b, 9, m.ProcessingLevel)
	b = appendString(b, 10, m.Value)
	return appendInt64(b, 11, int64(m.QualityCode))
}

func (m *ObsMetadata) unmarshalWire(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &m.ID), nil
		case 2:
			return consumeEmbedded(typ, b, func(body []byte) error {
				m.GeoPoint = new(Point)
				return m.GeoPoint.unmarshalWire(body)
			})
		case 4:
			return consumeTimestamp(typ, b, &m.Pubtime)
		case 5:
			return consumeString(typ, b, &m.DataID), nil
		case 6:
			return consumeString(typ, b, &m.History), nil
		case 7:
			return consumeString(typ, b, &m.MetadataID), nil
		case 8:
			return consumeTimestamp(typ, b, &m.ObstimeInstant)
		case 9:
			return consumeString(typ, b, &m.ProcessingLevel), nil
		case 10:
			return consumeString(typ, b, &m.Value), nil
		case 11:
			return consumeInt32(typ, b, &m.QualityCode), nil
		}
		return 0, nil
	})
}

// Metadata1

func (m *Metadata1) marshalWire(b []byte) []byte {
	if m.TSMdata != nil {
		b = appendEmbedded(b, 1, m.TSMdata.marshalWire(nil))
	}
	if m.ObsMdata != nil {
		b = appendEmbedded(b, 2, m.ObsMdata.marshalWire(nil))
	}
	return b
}

func (m *Metadata1) unmarshalWire(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeEmbedded(typ, b, func(body []byte) error {
				m.TSMdata = new(TSMetadata)
				return m.TSMdata.unmarshalWire(body)
			})
		case 2:
			return consumeEmbedded(typ, b, func(body []byte) error {
				m.ObsMdata = new(ObsMetadata)
				return m.ObsMdata.unmarshalWire(body)
			})
		}
		return 0, nil
	})
}

// Metadata2

func (m *Metadata2) marshalWire(b []byte) []byte {
	if m.TSMdata != nil {
		b = appendEmbedded(b, 1, m.TSMdata.marshalWire(nil))
	}
	for _, obs := range m.ObsMdata {
		b = appendEmbedded(b, 2, obs.marshalWire(nil))
	}
	return b
}

func (m *Metadata2) unmarshalWire(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeEmbedded(typ, b, func(body []byte) error {
				m.TSMdata = new(TSMetadata)
				return m.TSMdata.unmarshalWire(body)
			})
		case 2:
			return consumeEmbedded(typ, b, func(body []byte) error {
				obs := new(ObsMetadata)
				if err := obs.unmarshalWire(body); err != nil {
					return err
				}
				m.ObsMdata = append(m.ObsMdata, obs)
				return nil
			})
		}
		return 0, nil
	})
}

// PutObsRequest

func (r *PutObsRequest) marshalWire(b []byte) []byte {
	for _, obs := range r.Observations {
		b = appendEmbedded(b, 1, obs.marshalWire(nil))
	}
	return b
}

func (r *PutObsRequest) unmarshalWire(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 {
			return 0, nil
		}
		return consumeEmbedded(typ, b, func(body []byte) error {
			obs := new(Metadata1)
			if err := obs.unmarshalWire(body); err != nil {
				return err
			}
			r.Observations = append(r.Observations, obs)
			return nil
		})
	})
}

// PutObsResponse

func (r *PutObsResponse) marshalWire(b []byte) []byte {
	b = appendInt64(b, 1, int64(r.Status))
	return appendString(b, 2, r.Error)
}

func (r *PutObsResponse) unmarshalWire(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeInt32(typ, b, &r.Status), nil
		case 2:
			return consumeString(typ, b, &r.Error), nil
		}
		return 0, nil
	})
}

// GetObsRequest

func (r *GetObsRequest) marshalWire(b []byte) []byte {
	if r.TemporalInterval != nil {
		b = appendEmbedded(b, 1, r.TemporalInterval.marshalWire(nil))
	}
	if r.SpatialPolygon != nil {
		b = appendEmbedded(b, 2, r.SpatialPolygon.marshalWire(nil))
	}

	keys := make([]string, 0, len(r.Filter))
	for k := range r.Filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var values []byte
		for _, v := range r.Filter[k] {
			values = protowire.AppendTag(values, 1, protowire.BytesType)
			values = protowire.AppendString(values, v)
		}
		var entry []byte
		entry = appendString(entry, 1, k)
		entry = appendEmbedded(entry, 2, values)
		b = appendEmbedded(b, 4, entry)
	}

	b = appendString(b, 5, r.TemporalMode)
	for _, f := range r.IncludedResponseFields {
		b = protowire.AppendTag(b, 6, protowire.BytesType)
		b = protowire.AppendString(b, f)
	}
	return b
}

func (r *GetObsRequest) unmarshalWire(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeEmbedded(typ, b, func(body []byte) error {
				r.TemporalInterval = new(TimeInterval)
				return r.TemporalInterval.unmarshalWire(body)
			})
		case 2:
			return consumeEmbedded(typ, b, func(body []byte) error {
				r.SpatialPolygon = new(Polygon)
				return r.SpatialPolygon.unmarshalWire(body)
			})
		case 4:
			return consumeEmbedded(typ, b, r.unmarshalFilterEntry)
		case 5:
			return consumeString(typ, b, &r.TemporalMode), nil
		case 6:
			var f string
			n := consumeString(typ, b, &f)
			if n > 0 {
				r.IncludedResponseFields = append(r.IncludedResponseFields, f)
			}
			return n, nil
		}
		return 0, nil
	})
}

func (r *GetObsRequest) unmarshalFilterEntry(entry []byte) error {
	var key string
	var values []string
	err := walk(entry, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &key), nil
		case 2:
			return consumeEmbedded(typ, b, func(body []byte) error {
				return walk(body, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
					if num != 1 {
						return 0, nil
					}
					var v string
					n := consumeString(typ, b, &v)
					if n > 0 {
						values = append(values, v)
					}
					return n, nil
				})
			})
		}
		return 0, nil
	})
	if err != nil {
		return err
	}
	if r.Filter == nil {
		r.Filter = make(map[string][]string)
	}
	r.Filter[key] = values
	return nil
}

// GetObsResponse

func (r *GetObsResponse) marshalWire(b []byte) []byte {
	for _, obs := range r.Observations {
		b = appendEmbedded(b, 1, obs.marshalWire(nil))
	}
	return b
}

func (r *GetObsResponse) unmarshalWire(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 {
			return 0, nil
		}
		return consumeEmbedded(typ, b, func(body []byte) error {
			obs := new(Metadata2)
			if err := obs.unmarshalWire(body); err != nil {
				return err
			}
			r.Observations = append(r.Observations, obs)
			return nil
		})
	})
}

// GetTSAGRequest

func (r *GetTSAGRequest) marshalWire(b []byte) []byte {
	for _, a := range r.Attrs {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, a)
	}
	return appendBool(b, 2, r.IncludeInstances)
}

func (r *GetTSAGRequest) unmarshalWire(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			var a string
			n := consumeString(typ, b, &a)
			if n > 0 {
				r.Attrs = append(r.Attrs, a)
			}
			return n, nil
		case 2:
			return consumeBool(typ, b, &r.IncludeInstances), nil
		}
		return 0, nil
	})
}

// TSMdataGroup

func (g *TSMdataGroup) marshalWire(b []byte) []byte {
	if g.Combo != nil {
		b = appendEmbedded(b, 1, g.Combo.marshalWire(nil))
	}
	for _, inst := range g.Instances {
		b = appendEmbedded(b, 2, inst.marshalWire(nil))
	}
	return b
}

func (g *TSMdataGroup) unmarshalWire(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeEmbedded(typ, b, func(body []byte) error {
				g.Combo = new(TSMetadata)
				return g.Combo.unmarshalWire(body)
			})
		case 2:
			return consumeEmbedded(typ, b, func(body []byte) error {
				inst := new(TSMetadata)
				if err := inst.unmarshalWire(body); err != nil {
					return err
				}
				g.Instances = append(g.Instances, inst)
				return nil
			})
		}
		return 0, nil
	})
}

// GetTSAGResponse

func (r *GetTSAGResponse) marshalWire(b []byte) []byte {
	for _, g := range r.Groups {
		b = appendEmbedded(b, 1, g.marshalWire(nil))
	}
	return b
}

func (r *GetTSAGResponse) unmarshalWire(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 {
			return 0, nil
		}
		return consumeEmbedded(typ, b, func(body []byte) error {
			g := new(TSMdataGroup)
			if err := g.unmarshalWire(body); err != nil {
				return err
			}
			r.Groups = append(r.Groups, g)
			return nil
		})
	})
}

// GetExtents

func (r *GetExtentsRequest) marshalWire(b []byte) []byte { return b }

func (r *GetExtentsRequest) unmarshalWire(b []byte) error {
	return walk(b, func(protowire.Number, protowire.Type, []byte) (int, error) { return 0, nil })
}

func (r *GetExtentsResponse) marshalWire(b []byte) []byte {
	if r.TemporalExtent != nil {
		b = appendEmbedded(b, 1, r.TemporalExtent.marshalWire(nil))
	}
	if r.SpatialExtent != nil {
		b = appendEmbedded(b, 2, r.SpatialExtent.marshalWire(nil))
	}
	return b
}

func (r *GetExtentsResponse) unmarshalWire(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeEmbedded(typ, b, func(body []byte) error {
				r.TemporalExtent = new(TimeInterval)
				return r.TemporalExtent.unmarshalWire(body)
			})
		case 2:
			return consumeEmbedded(typ, b, func(body []byte) error {
				r.SpatialExtent = new(BoundingBox)
				return r.SpatialExtent.unmarshalWire(body)
			})
		}
		return 0, nil
	})
}
