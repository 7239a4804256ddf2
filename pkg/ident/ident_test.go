package ident_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/gnames/gn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warno/warno/internal/iotesting"
	"github.com/warno/warno/pkg/errcode"
	"github.com/warno/warno/pkg/ident"
	"github.com/warno/warno/pkg/protocol"
	"github.com/warno/warno/pkg/store"
)

func envelope(t *testing.T, code int, data any) *protocol.Envelope {
	t.Helper()
	res, err := protocol.New(code, data)
	require.NoError(t, err)
	return res
}

// tiers returns a site resolver that delegates to a central one.
func tiers() (*ident.Resolver, *iotesting.MemStore, *iotesting.MemStore, *iotesting.Sender) {
	centralStore := iotesting.NewMemStore(map[string][]store.Column{
		"prosensing_paf": nil,
	})
	central := ident.New(centralStore, nil)
	up := &iotesting.Sender{Reply: central.Resolve}
	siteStore := iotesting.NewMemStore(map[string][]store.Column{
		"prosensing_paf": nil,
	})
	return ident.New(siteStore, up), siteStore, centralStore, up
}

func TestCentralSite(t *testing.T) {
	ctx := context.Background()
	r := ident.New(iotesting.NewMemStore(nil), nil)
	assert.True(t, r.IsCentral())

	resp, err := r.Resolve(ctx, envelope(t, protocol.CodeSiteIDRequest, "OLI"))
	require.NoError(t, err)
	assert.Equal(t, protocol.CodeSiteIDRequest, resp.EventCode)
	var site protocol.Site
	require.NoError(t, resp.Unmarshal(&site))
	assert.Equal(t, int64(1), site.SiteID)
	assert.Equal(t, "OLI", site.NameShort)

	resp, err = r.Resolve(ctx, envelope(t, protocol.CodeSiteIDRequest, "OLI"))
	require.NoError(t, err)
	var again protocol.Site
	require.NoError(t, resp.Unmarshal(&again))
	assert.Equal(t, site.SiteID, again.SiteID)

	resp, err = r.Resolve(ctx, envelope(t, protocol.CodeSiteIDRequest, "PGH"))
	require.NoError(t, err)
	var other protocol.Site
	require.NoError(t, resp.Unmarshal(&other))
	assert.Equal(t, int64(2), other.SiteID)
}

func TestCentralInstrument(t *testing.T) {
	ctx := context.Background()
	mem := iotesting.NewMemStore(nil)
	r := ident.New(mem, nil)

	_, err := r.Resolve(ctx, envelope(t, protocol.CodeSiteIDRequest, "OLI"))
	require.NoError(t, err)

	req := protocol.InstrumentRequest{NameShort: "KAZR", SiteID: 1}
	resp, err := r.Resolve(ctx, envelope(t, protocol.CodeInstrumentIDRequest, req))
	require.NoError(t, err)
	var inst protocol.Instrument
	require.NoError(t, resp.Unmarshal(&inst))
	assert.Equal(t, int64(1), inst.InstrumentID)
	assert.Equal(t, int64(1), inst.SiteID)

	// a bare name finds the existing instrument
	resp, err = r.Resolve(ctx, envelope(t, protocol.CodeInstrumentIDRequest, "KAZR"))
	require.NoError(t, err)
	var again protocol.Instrument
	require.NoError(t, resp.Unmarshal(&again))
	assert.Equal(t, inst.InstrumentID, again.InstrumentID)
	assert.Equal(t, 1, mem.Count("CreateInstrument"))
}

func TestCentralInstrumentOwner(t *testing.T) {
	ctx := context.Background()
	r := ident.New(iotesting.NewMemStore(nil), nil)

	tests := []struct {
		msg  string
		data any
	}{
		{"bare name", "KAZR"},
		{"unknown site", protocol.InstrumentRequest{NameShort: "KAZR", SiteID: 42}},
	}

	for _, v := range tests {
		_, err := r.Resolve(ctx, envelope(t, protocol.CodeInstrumentIDRequest, v.data))
		require.Error(t, err, v.msg)
		gnErr, ok := err.(*gn.Error)
		require.True(t, ok, v.msg)
		assert.Equal(t, errcode.ResolveOwnerError, gnErr.Code, v.msg)
	}
}

func TestCentralEventCode(t *testing.T) {
	ctx := context.Background()
	mem := iotesting.NewMemStore(map[string][]store.Column{"prosensing_paf": nil})
	mem.SeedInstruments(1, 2)
	r := ident.New(mem, nil)

	tests := []struct {
		msg  string
		desc string
		inst int64
		code int
	}{
		{"new attribute", "reflectivity", 1, protocol.FirstDynamicCode},
		{"next attribute", "velocity", 1, protocol.FirstDynamicCode + 1},
		{"known attribute", "reflectivity", 2, protocol.FirstDynamicCode},
		{"fixed code", "prosensing_paf", 1, protocol.CodeProsensingPAF},
	}

	for _, v := range tests {
		req := protocol.EventCodeRequest{Description: v.desc, InstrumentID: v.inst}
		resp, err := r.Resolve(ctx, envelope(t, protocol.CodeEventCodeRequest, req))
		require.NoError(t, err, v.msg)
		assert.Equal(t, v.code, resp.EventCode, v.msg)
		var res protocol.EventCodeRequest
		require.NoError(t, resp.Unmarshal(&res), v.msg)
		assert.Equal(t, v.desc, res.Description, v.msg)
		assert.Equal(t, v.inst, res.InstrumentID, v.msg)
	}
	assert.Equal(t, 2, mem.Count("AllocateEventCode"))
	assert.Equal(t, 4, mem.DataReferences())
}

func TestCentralEventCodeConcurrent(t *testing.T) {
	ctx := context.Background()
	mem := iotesting.NewMemStore(nil)
	mem.SeedInstruments(1)
	r := ident.New(mem, nil)

	var wg sync.WaitGroup
	codes := make([]int, 20)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := protocol.EventCodeRequest{Description: "power", InstrumentID: 1}
			env, _ := protocol.New(protocol.CodeEventCodeRequest, req)
			resp, err := r.Resolve(ctx, env)
			if err == nil {
				codes[i] = resp.EventCode
			}
		}(i)
	}
	wg.Wait()

	for _, v := range codes {
		assert.Equal(t, protocol.FirstDynamicCode, v)
	}
}

func TestEventCodeUnknownInstrument(t *testing.T) {
	ctx := context.Background()
	req := protocol.EventCodeRequest{Description: "temp", InstrumentID: 999}

	mem := iotesting.NewMemStore(nil)
	r := ident.New(mem, nil)
	_, err := r.Resolve(ctx, envelope(t, protocol.CodeEventCodeRequest, req))
	require.Error(t, err)
	gnErr, ok := err.(*gn.Error)
	require.True(t, ok)
	assert.Equal(t, errcode.ResolveUnknownInstrumentError, gnErr.Code)
	assert.Equal(t, 0, mem.Count("AllocateEventCode"))
	assert.Equal(t, 0, mem.DataReferences())

	// a site tier does not ask the central facility about instruments
	site, siteStore, _, up := tiers()
	_, err = site.Resolve(ctx, envelope(t, protocol.CodeEventCodeRequest, req))
	require.Error(t, err)
	assert.True(t, errcode.Has(err, errcode.ResolveUnknownInstrumentError))
	assert.Equal(t, 0, up.Count())
	assert.Equal(t, 0, siteStore.DataReferences())

	mem.SeedInstruments(999)
	require.NoError(t, r.CheckInstrument(ctx, 999))
	require.NoError(t, r.CheckInstrument(ctx, 999))
	assert.Equal(t, 2, mem.Count("InstrumentByID"))
}

func TestSiteTierDelegates(t *testing.T) {
	ctx := context.Background()
	r, siteStore, centralStore, up := tiers()
	assert.False(t, r.IsCentral())

	// seed central with another site so identifiers differ from defaults
	_, err := centralStore.CreateSite(ctx, protocol.Site{NameShort: "PGH"})
	require.NoError(t, err)

	resp, err := r.Resolve(ctx, envelope(t, protocol.CodeSiteIDRequest, "OLI"))
	require.NoError(t, err)
	var site protocol.Site
	require.NoError(t, resp.Unmarshal(&site))
	assert.Equal(t, int64(2), site.SiteID)
	assert.Equal(t, 1, up.Count())
	assert.Equal(t, 1, siteStore.Count("UpsertSite"))
	assert.Equal(t, 0, siteStore.Count("CreateSite"))

	// local hit makes no network call
	_, err = r.Resolve(ctx, envelope(t, protocol.CodeSiteIDRequest, "OLI"))
	require.NoError(t, err)
	assert.Equal(t, 1, up.Count())

	req := protocol.InstrumentRequest{NameShort: "KAZR", SiteID: site.SiteID}
	resp, err = r.Resolve(ctx, envelope(t, protocol.CodeInstrumentIDRequest, req))
	require.NoError(t, err)
	var inst protocol.Instrument
	require.NoError(t, resp.Unmarshal(&inst))
	assert.Equal(t, int64(1), inst.InstrumentID)
	assert.Equal(t, 2, up.Count())

	ecReq := protocol.EventCodeRequest{Description: "reflectivity", InstrumentID: 1}
	resp, err = r.Resolve(ctx, envelope(t, protocol.CodeEventCodeRequest, ecReq))
	require.NoError(t, err)
	assert.Equal(t, protocol.FirstDynamicCode, resp.EventCode)
	assert.Equal(t, 3, up.Count())
	assert.Equal(t, 1, siteStore.Count("UpsertEventCode"))
	assert.Equal(t, 0, siteStore.Count("AllocateEventCode"))
	assert.Equal(t, 1, siteStore.DataReferences())
	assert.Equal(t, 1, centralStore.DataReferences())

	// forwarded verbatim
	assert.Equal(t, ecReq.Description, mustDecode(t, up.Sent[2]).Description)
}

func mustDecode(t *testing.T, env *protocol.Envelope) protocol.EventCodeRequest {
	t.Helper()
	var res protocol.EventCodeRequest
	require.NoError(t, env.Unmarshal(&res))
	return res
}

func TestSiteTierUpstreamFailure(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("connection refused")
	up := &iotesting.Sender{
		Reply: func(context.Context, *protocol.Envelope) (*protocol.Envelope, error) {
			return nil, cause
		},
	}
	mem := iotesting.NewMemStore(nil)
	r := ident.New(mem, up)

	_, err := r.Resolve(ctx, envelope(t, protocol.CodeSiteIDRequest, "OLI"))
	require.Error(t, err)
	gnErr, ok := err.(*gn.Error)
	require.True(t, ok)
	assert.Equal(t, errcode.ResolveUpstreamError, gnErr.Code)
	assert.ErrorIs(t, gnErr.Err, cause)
	assert.Equal(t, 0, mem.Count("UpsertSite"))
}

func TestSiteTierMismatch(t *testing.T) {
	ctx := context.Background()
	up := &iotesting.Sender{
		Reply: func(ctx context.Context, env *protocol.Envelope) (*protocol.Envelope, error) {
			return protocol.New(env.EventCode, protocol.Site{SiteID: 3, NameShort: "XXX"})
		},
	}
	r := ident.New(iotesting.NewMemStore(nil), up)

	_, err := r.Resolve(ctx, envelope(t, protocol.CodeSiteIDRequest, "OLI"))
	require.Error(t, err)
	assert.True(t, errcode.Has(err, errcode.ResolveUpstreamError))
}

func TestResolveMalformed(t *testing.T) {
	ctx := context.Background()
	r := ident.New(iotesting.NewMemStore(nil), nil)

	tests := []struct {
		msg  string
		code int
		data any
	}{
		{"site as object", protocol.CodeSiteIDRequest, map[string]any{"name": "OLI"}},
		{"empty site", protocol.CodeSiteIDRequest, ""},
		{"code without instrument", protocol.CodeEventCodeRequest,
			map[string]any{"description": "power"}},
		{"instrument as number", protocol.CodeInstrumentIDRequest, 5},
	}

	for _, v := range tests {
		_, err := r.Resolve(ctx, envelope(t, v.code, v.data))
		require.Error(t, err, v.msg)
		assert.True(t, protocol.IsClientError(err), v.msg)
	}

	_, err := r.Resolve(ctx, envelope(t, protocol.CodePulseCapture, map[string]any{}))
	assert.Error(t, err)
}
