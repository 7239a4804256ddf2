package iotesting

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/warno/warno/pkg/protocol"
	"github.com/warno/warno/pkg/store"
)

// Observation is a generic value kept by MemStore.
type Observation struct {
	Code         int
	InstrumentID int64
	Time         time.Time
	Value        float64
	Text         string
	IsText       bool
}

// WideInsert is a statement MemStore built for a special attribute set.
type WideInsert struct {
	Table string
	SQL   string
	Args  []any
}

// MemStore is an in-memory store.Store with the same identifier rules as
// the database implementation. It is safe for concurrent use.
type MemStore struct {
	mu sync.Mutex

	sites       map[int64]protocol.Site
	instruments map[int64]protocol.Instrument
	codes       map[int]string
	refs        map[string]store.DataReference
	special     map[string][]store.Column

	nextSite       int64
	nextInstrument int64

	Values        []Observation
	Captures      []protocol.PulseCapture
	Logs          []protocol.InstrumentLog
	Wide          []WideInsert
	Calls         map[string]int
	FailRecording error
}

// NewMemStore creates a store seeded with the fixed event codes and the
// given special attribute set tables.
func NewMemStore(special map[string][]store.Column) *MemStore {
	res := &MemStore{
		sites:          make(map[int64]protocol.Site),
		instruments:    make(map[int64]protocol.Instrument),
		codes:          make(map[int]string),
		refs:           make(map[string]store.DataReference),
		special:        special,
		nextSite:       1,
		nextInstrument: 1,
		Calls:          make(map[string]int),
	}
	if res.special == nil {
		res.special = make(map[string][]store.Column)
	}
	for k, v := range protocol.FixedCodes {
		res.codes[k] = v
	}
	return res
}

// Count returns how many times a method was called.
func (m *MemStore) Count(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[method]
}

func (m *MemStore) SiteByName(_ context.Context, name string) (*protocol.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["SiteByName"]++
	for _, v := range m.sites {
		if v.NameShort == name {
			return &v, nil
		}
	}
	return nil, nil
}

func (m *MemStore) SiteByID(_ context.Context, id int64) (*protocol.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["SiteByID"]++
	if v, ok := m.sites[id]; ok {
		return &v, nil
	}
	return nil, nil
}

func (m *MemStore) CreateSite(_ context.Context, s protocol.Site) (*protocol.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["CreateSite"]++
	for _, v := range m.sites {
		if v.NameShort == s.NameShort {
			return &v, nil
		}
	}
	s.SiteID = m.nextSite
	m.nextSite++
	m.sites[s.SiteID] = s
	return &s, nil
}

func (m *MemStore) UpsertSite(_ context.Context, s protocol.Site) (*protocol.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["UpsertSite"]++
	m.sites[s.SiteID] = s
	if s.SiteID >= m.nextSite {
		m.nextSite = s.SiteID + 1
	}
	return &s, nil
}

func (m *MemStore) InstrumentByName(_ context.Context, name string) (*protocol.Instrument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["InstrumentByName"]++
	for _, v := range m.instruments {
		if v.NameShort == name {
			return &v, nil
		}
	}
	return nil, nil
}

func (m *MemStore) InstrumentByID(_ context.Context, id int64) (*protocol.Instrument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["InstrumentByID"]++
	if v, ok := m.instruments[id]; ok {
		return &v, nil
	}
	return nil, nil
}

// SeedInstruments adds instruments with the given identifiers to site 1.
func (m *MemStore) SeedInstruments(ids ...int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		m.instruments[id] = protocol.Instrument{
			InstrumentID: id,
			SiteID:       1,
			NameShort:    "instrument-" + strconv.FormatInt(id, 10),
		}
		if id >= m.nextInstrument {
			m.nextInstrument = id + 1
		}
	}
}

// AddSpecialTable makes a special attribute set table appear.
func (m *MemStore) AddSpecialTable(name string, cols []store.Column) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.special[name] = cols
}

func (m *MemStore) CreateInstrument(_ context.Context, i protocol.Instrument) (*protocol.Instrument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["CreateInstrument"]++
	for _, v := range m.instruments {
		if v.NameShort == i.NameShort {
			return &v, nil
		}
	}
	i.InstrumentID = m.nextInstrument
	m.nextInstrument++
	m.instruments[i.InstrumentID] = i
	return &i, nil
}

func (m *MemStore) UpsertInstrument(_ context.Context, i protocol.Instrument) (*protocol.Instrument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["UpsertInstrument"]++
	m.instruments[i.InstrumentID] = i
	if i.InstrumentID >= m.nextInstrument {
		m.nextInstrument = i.InstrumentID + 1
	}
	return &i, nil
}

func (m *MemStore) EventCodeByDescription(_ context.Context, desc string) (*store.EventCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["EventCodeByDescription"]++
	for k, v := range m.codes {
		if v == desc {
			return &store.EventCode{Code: k, Description: v}, nil
		}
	}
	return nil, nil
}

func (m *MemStore) EventCodeByID(_ context.Context, code int) (*store.EventCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["EventCodeByID"]++
	if v, ok := m.codes[code]; ok {
		return &store.EventCode{Code: code, Description: v}, nil
	}
	return nil, nil
}

func (m *MemStore) AllocateEventCode(_ context.Context, desc string) (*store.EventCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["AllocateEventCode"]++
	next := protocol.MaxReservedCode
	for k, v := range m.codes {
		if v == desc {
			return &store.EventCode{Code: k, Description: v}, nil
		}
		if k > next {
			next = k
		}
	}
	next++
	m.codes[next] = desc
	return &store.EventCode{Code: next, Description: desc}, nil
}

func (m *MemStore) UpsertEventCode(_ context.Context, ec store.EventCode) (*store.EventCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["UpsertEventCode"]++
	m.codes[ec.Code] = ec.Description
	return &ec, nil
}

func (m *MemStore) EnsureDataReference(
	_ context.Context,
	instrumentID int64,
	desc string,
) (*store.DataReference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["EnsureDataReference"]++
	key := refKey(instrumentID, desc)
	if v, ok := m.refs[key]; ok {
		return &v, nil
	}
	_, special := m.special[desc]
	ref := store.DataReference{
		InstrumentID: instrumentID,
		Description:  desc,
		Special:      special,
	}
	m.refs[key] = ref
	return &ref, nil
}

// DataReferences returns the number of stored data references.
func (m *MemStore) DataReferences() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.refs)
}

func (m *MemStore) IsSpecialTable(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["IsSpecialTable"]++
	_, ok := m.special[name]
	return ok, nil
}

func (m *MemStore) SaveValue(
	_ context.Context,
	code int,
	instrumentID int64,
	t time.Time,
	v float64,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["SaveValue"]++
	if m.FailRecording != nil {
		return m.FailRecording
	}
	m.Values = append(m.Values, Observation{
		Code: code, InstrumentID: instrumentID, Time: t, Value: v,
	})
	return nil
}

func (m *MemStore) SaveText(
	_ context.Context,
	code int,
	instrumentID int64,
	t time.Time,
	text string,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["SaveText"]++
	if m.FailRecording != nil {
		return m.FailRecording
	}
	m.Values = append(m.Values, Observation{
		Code: code, InstrumentID: instrumentID, Time: t, Text: text, IsText: true,
	})
	return nil
}

func (m *MemStore) SavePulseCapture(_ context.Context, pc protocol.PulseCapture) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["SavePulseCapture"]++
	if m.FailRecording != nil {
		return m.FailRecording
	}
	m.Captures = append(m.Captures, pc)
	return nil
}

func (m *MemStore) SaveInstrumentLog(_ context.Context, l protocol.InstrumentLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["SaveInstrumentLog"]++
	if m.FailRecording != nil {
		return m.FailRecording
	}
	m.Logs = append(m.Logs, l)
	return nil
}

func (m *MemStore) SaveWideRow(_ context.Context, table string, row protocol.WideRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["SaveWideRow"]++
	if m.FailRecording != nil {
		return m.FailRecording
	}
	cols, ok := m.special[table]
	if !ok {
		return errors.New("no such table: " + table)
	}
	q, args, err := store.BuildWideInsert(table, cols, row)
	if err != nil {
		return err
	}
	m.Wide = append(m.Wide, WideInsert{Table: table, SQL: q, Args: args})
	return nil
}

func refKey(instrumentID int64, desc string) string {
	return strconv.FormatInt(instrumentID, 10) + "/" + desc
}
