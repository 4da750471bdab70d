package migrate

import (
	"context"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uw-ictd/haulage/internal/model"
	"github.com/uw-ictd/haulage/internal/remap"
)

func TestRemapStaticIPsRewritesAssignments(t *testing.T) {
	target := newFakeTarget()
	target.staticIPs["910540000000001"] = model.StaticIP{
		IMSI: "910540000000001", IP: netip.MustParseAddr("192.168.151.2")}
	target.staticIPs["910540000000256"] = model.StaticIP{
		IMSI: "910540000000256", IP: netip.MustParseAddr("192.168.152.5")}

	assignments := &fakeAssignments{rows: []model.StaticIP{
		target.staticIPs["910540000000001"],
		target.staticIPs["910540000000256"],
	}}

	r := &Remapper{Stem: "91054000", Block: netip.MustParsePrefix("10.45.1.0/16")}
	report, err := r.RemapStaticIPs(context.Background(), assignments, target)
	require.NoError(t, err)
	assert.Equal(t, Report{Committed: 2}, report)

	assert.Equal(t, "10.45.1.1", target.staticIPs["910540000000001"].IP.String())
	assert.Equal(t, "10.45.2.0", target.staticIPs["910540000000256"].IP.String())
}

func TestRemapStaticIPsAbortsOnExhaustedPlan(t *testing.T) {
	target := newFakeTarget()
	target.staticIPs["910540000000300"] = model.StaticIP{
		IMSI: "910540000000300", IP: netip.MustParseAddr("192.168.152.50")}

	assignments := &fakeAssignments{rows: []model.StaticIP{
		target.staticIPs["910540000000300"],
	}}

	// A /24 block cannot hold serial 300.
	r := &Remapper{Stem: "91054000", Block: netip.MustParsePrefix("10.45.1.0/24")}
	_, err := r.RemapStaticIPs(context.Background(), assignments, target)

	var oerr *remap.OutOfRangeError
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, "192.168.152.50", target.staticIPs["910540000000300"].IP.String(),
		"the assignment must not be wrapped or clamped")
}

func TestRemapStaticIPsAbortsOnForeignIdentifier(t *testing.T) {
	target := newFakeTarget()
	assignments := &fakeAssignments{rows: []model.StaticIP{
		{IMSI: "999990000000001", IP: netip.MustParseAddr("192.168.151.2")},
	}}

	r := &Remapper{Stem: "91054000", Block: netip.MustParsePrefix("10.45.1.0/16")}
	_, err := r.RemapStaticIPs(context.Background(), assignments, target)

	var verr *remap.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestRemapSessionsRewritesDocuments(t *testing.T) {
	sessions := &fakeSessions{
		order: []string{"910540000000001", "910540000000002"},
		addrs: map[string]netip.Addr{
			"910540000000001": netip.MustParseAddr("192.168.151.2"),
			"910540000000002": netip.MustParseAddr("192.168.151.3"),
		},
	}

	r := &Remapper{Stem: "91054000", Block: netip.MustParsePrefix("10.45.1.0/16")}
	report, err := r.RemapSessions(context.Background(), sessions)
	require.NoError(t, err)
	assert.Equal(t, Report{Committed: 2}, report)

	assert.Equal(t, "10.45.1.1", sessions.addrs["910540000000001"].String())
	assert.Equal(t, "10.45.1.2", sessions.addrs["910540000000002"].String())
}

func TestRemapSessionsIsIdempotent(t *testing.T) {
	sessions := &fakeSessions{
		order: []string{"910540000000001"},
		addrs: map[string]netip.Addr{
			"910540000000001": netip.MustParseAddr("192.168.151.2"),
		},
	}

	r := &Remapper{Stem: "91054000", Block: netip.MustParsePrefix("10.45.1.0/16")}
	_, err := r.RemapSessions(context.Background(), sessions)
	require.NoError(t, err)

	// Re-running over already-remapped documents produces the same state.
	_, err = r.RemapSessions(context.Background(), sessions)
	require.NoError(t, err)
	assert.Equal(t, "10.45.1.1", sessions.addrs["910540000000001"].String())
}
