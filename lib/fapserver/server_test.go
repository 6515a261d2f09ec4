// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fapserver

import (
	"context"
	"errors"
	"math"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/fap/lib/autopilot"
	"github.com/bureau-foundation/fap/lib/clock"
	"github.com/bureau-foundation/fap/lib/geo"
	"github.com/bureau-foundation/fap/lib/netutil"
	"github.com/bureau-foundation/fap/lib/protocol"
	"github.com/bureau-foundation/fap/lib/testutil"
)

var testEpoch = time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)

const (
	testServerID = 254
	// ioTimeout bounds every client-side socket wait in these tests.
	ioTimeout = 5 * time.Second
)

// nearOrigin is a fix about 40 m from the emulator's default origin.
var nearOrigin = geo.RawCoordinates{Latitude: 41.178, Longitude: -8.597, Altitude: 10}

func testConfig() Config {
	config := DefaultConfig()
	config.Address = "127.0.0.1:0"
	config.MaxAssociatedUsers = 2
	config.MaxRejectedUsers = 1
	return config
}

type testServer struct {
	*Server
	emulator *autopilot.Emulator
	clock    *clock.FakeClock
}

func startServer(t *testing.T, config Config) *testServer {
	t.Helper()
	fake := clock.Fake(testEpoch)
	logger := testutil.Logger(t)
	emulator := autopilot.NewEmulator(autopilot.EmulatorConfig{Clock: fake, Logger: logger})
	server := New(config, emulator, WithClock(fake), WithLogger(logger))

	if err := server.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() {
		if err := server.Terminate(); err != nil {
			t.Errorf("Terminate: %v", err)
		}
	})
	return &testServer{Server: server, emulator: emulator, clock: fake}
}

type testClient struct {
	t      *testing.T
	conn   net.Conn
	reader *protocol.Reader
	writer *protocol.Writer
}

func dial(t *testing.T, server *testServer) *testClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", server.Addr().String(), ioTimeout)
	if err != nil {
		t.Fatalf("dialing server: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn, reader: protocol.NewReader(conn), writer: protocol.NewWriter(conn)}
}

func (c *testClient) send(message protocol.Message) {
	c.t.Helper()
	if err := c.writer.Write(message); err != nil {
		c.t.Fatalf("sending %s: %v", message.Type, err)
	}
}

func (c *testClient) sendRaw(text string) {
	c.t.Helper()
	if _, err := c.conn.Write([]byte(text)); err != nil {
		c.t.Fatalf("sending raw text: %v", err)
	}
}

func (c *testClient) receive() protocol.Message {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(ioTimeout)) //nolint:realclock socket deadline
	message, err := c.reader.Read()
	if err != nil {
		c.t.Fatalf("receiving reply: %v", err)
	}
	return message
}

func (c *testClient) expect(msgType protocol.MsgType) protocol.Message {
	c.t.Helper()
	message := c.receive()
	if message.Type != msgType {
		c.t.Fatalf("received %s, want %s", message.Type, msgType)
	}
	if message.UserID != testServerID {
		c.t.Errorf("reply userId = %d, want server id %d", message.UserID, testServerID)
	}
	return message
}

// requireClosed asserts that the server closes the connection without
// sending anything further.
func (c *testClient) requireClosed() {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(ioTimeout)) //nolint:realclock socket deadline
	message, err := c.reader.Read()
	if err == nil {
		c.t.Fatalf("received %s, want connection closed", message.Type)
	}
	if !netutil.IsExpectedCloseError(err) {
		c.t.Fatalf("read = %v, want connection closed", err)
	}
}

func (c *testClient) associate(userID int) {
	c.t.Helper()
	c.send(protocol.NewAssociationRequest(userID))
	c.expect(protocol.AssociationAccepted)
}

func gpsUpdate(userID int, fix geo.RawCoordinates, at time.Time) protocol.Message {
	fix.Timestamp = at
	return protocol.NewGpsUpdate(userID, fix)
}

func TestAssociateUpdateDesassociate(t *testing.T) {
	server := startServer(t, testConfig())
	client := dial(t, server)

	client.associate(7)
	if server.ActiveUsers() != 1 {
		t.Fatalf("ActiveUsers = %d after association, want 1", server.ActiveUsers())
	}

	client.send(gpsUpdate(7, nearOrigin, testEpoch))
	ack := client.expect(protocol.GpsCoordinatesAck)
	if !ack.ServerTime.Equal(server.clock.Now()) {
		t.Errorf("ack timestamp = %v, want server time %v", ack.ServerTime, server.clock.Now())
	}

	positions, err := server.UserPositions()
	if err != nil {
		t.Fatalf("UserPositions: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("UserPositions returned %d entries, want 1", len(positions))
	}
	want := geo.ToNed(nearOrigin, autopilot.DefaultOrigin)
	if math.Abs(positions[0].X-want.X) > 1e-9 || math.Abs(positions[0].Y-want.Y) > 1e-9 || positions[0].Z != -10 {
		t.Errorf("user position = %s, want %s", positions[0], want)
	}
	if !positions[0].Timestamp.Equal(testEpoch) {
		t.Errorf("position timestamp = %v, want client fix time %v", positions[0].Timestamp, testEpoch)
	}

	users, err := server.Users()
	if err != nil || len(users) != 1 || users[0].UserID != 7 {
		t.Errorf("Users = %+v, %v; want one record for user 7", users, err)
	}

	client.send(protocol.NewDesassociationRequest(7))
	client.expect(protocol.DesassociationAck)
	if server.ActiveUsers() != 0 {
		t.Errorf("ActiveUsers = %d after desassociation, want 0", server.ActiveUsers())
	}
	client.requireClosed()

	testutil.RequireEventually(t, ioTimeout, func() bool {
		positions, _ := server.UserPositions()
		return len(positions) == 0
	}, "position record cleared after session end")
}

func TestPrettyPrintedRequest(t *testing.T) {
	server := startServer(t, testConfig())
	client := dial(t, server)

	client.sendRaw("{\n    \"userId\": 7,\n    \"msgType\": 1\n}")
	client.expect(protocol.AssociationAccepted)
}

func TestAssociationCap(t *testing.T) {
	server := startServer(t, testConfig())

	first := dial(t, server)
	first.associate(1)
	second := dial(t, server)
	second.associate(2)

	third := dial(t, server)
	third.send(protocol.NewAssociationRequest(3))
	third.expect(protocol.AssociationRejected)
	if server.ActiveUsers() != 2 {
		t.Fatalf("ActiveUsers = %d at the cap, want 2", server.ActiveUsers())
	}

	first.send(protocol.NewDesassociationRequest(1))
	first.expect(protocol.DesassociationAck)
	first.requireClosed()

	testutil.RequireEventually(t, ioTimeout, func() bool {
		status, err := server.Status()
		return err == nil && status.Sessions == 2
	}, "desassociated session frees its slot")

	fourth := dial(t, server)
	fourth.associate(4)
	if server.ActiveUsers() != 2 {
		t.Errorf("ActiveUsers = %d, want 2", server.ActiveUsers())
	}

	// The rejected client stays connected and is still refused.
	third.send(protocol.NewAssociationRequest(3))
	third.expect(protocol.AssociationRejected)
}

func TestConnectionBeyondCapacityIsClosed(t *testing.T) {
	server := startServer(t, testConfig())

	for i := 0; i < 3; i++ {
		dial(t, server)
	}
	testutil.RequireEventually(t, ioTimeout, func() bool {
		status, _ := server.Status()
		return status.Sessions == 3
	}, "three sessions admitted")

	dial(t, server).requireClosed()
}

func TestRepeatedAssociationCountsOnce(t *testing.T) {
	server := startServer(t, testConfig())
	client := dial(t, server)

	client.associate(7)
	client.associate(7)
	if server.ActiveUsers() != 1 {
		t.Errorf("ActiveUsers = %d after repeated association, want 1", server.ActiveUsers())
	}
}

func TestDesassociationWithoutAssociation(t *testing.T) {
	server := startServer(t, testConfig())
	client := dial(t, server)

	client.send(protocol.NewDesassociationRequest(7))
	client.expect(protocol.DesassociationAck)
	client.requireClosed()
	if server.ActiveUsers() != 0 {
		t.Errorf("ActiveUsers = %d, want 0", server.ActiveUsers())
	}
}

func TestInvalidMessagesAreIgnored(t *testing.T) {
	server := startServer(t, testConfig())
	client := dial(t, server)

	// None of these get a reply; the association that follows must be
	// the first thing answered.
	client.sendRaw(`{"userId":7,"msgType":42}`)
	client.sendRaw(`{"userId":7}`)
	client.send(gpsUpdate(7, nearOrigin, testEpoch))
	client.send(protocol.NewReply(7, protocol.AssociationAccepted))
	client.sendRaw(`{"userId":7,"msgType":6,"gpsCoordinates":{"lat":1,"lon":2}}`)

	client.associate(7)

	// Out-of-range geodetic values are ignored too.
	client.send(gpsUpdate(7, geo.RawCoordinates{Latitude: 123, Longitude: 0}, testEpoch))
	client.send(gpsUpdate(7, nearOrigin, testEpoch))
	client.expect(protocol.GpsCoordinatesAck)
}

func TestMalformedJSONDropsConnection(t *testing.T) {
	server := startServer(t, testConfig())
	client := dial(t, server)
	client.associate(7)

	client.sendRaw(`{"userId":7,"msgType":}`)
	client.requireClosed()

	testutil.RequireEventually(t, ioTimeout, func() bool { return server.ActiveUsers() == 0 },
		"association released after malformed input")
}

func TestOversizedMessageDropsConnection(t *testing.T) {
	server := startServer(t, testConfig())
	client := dial(t, server)
	client.associate(7)

	oversized := `{"userId":7,"msgType":6,"padding":"` + strings.Repeat("x", 2*protocol.MaxMessageSize) + `"}`
	written := make(chan struct{})
	go func() {
		defer close(written)
		// The server stops reading partway through, so this write may
		// fail with a reset.
		client.conn.Write([]byte(oversized))
	}()

	client.requireClosed()
	testutil.RequireClosed(t, written, ioTimeout, "oversized write")
	testutil.RequireEventually(t, ioTimeout, func() bool { return server.ActiveUsers() == 0 },
		"association released after oversized message")
}

func TestOutOfRangeUpdateDropsConnection(t *testing.T) {
	server := startServer(t, testConfig())
	client := dial(t, server)
	client.associate(7)

	// About 1.4 km north of the origin.
	far := geo.RawCoordinates{Latitude: 41.1905, Longitude: -8.5971899}
	client.send(gpsUpdate(7, far, testEpoch))
	client.requireClosed()

	testutil.RequireEventually(t, ioTimeout, func() bool { return server.ActiveUsers() == 0 },
		"association released after out-of-range update")
	positions, _ := server.UserPositions()
	if len(positions) != 0 {
		t.Errorf("out-of-range update recorded: %v", positions)
	}
}

func TestDistanceIsMeasuredFromAccessPoint(t *testing.T) {
	server := startServer(t, testConfig())

	// Move the access point 400 m north; the origin is now out of
	// range.
	if err := server.MoveTo(context.Background(), geo.NedCoordinates{X: 400}); err != nil {
		t.Fatalf("MoveTo: %v", err)
	}
	position, err := server.Position(context.Background())
	if err != nil || position.X != 400 {
		t.Fatalf("Position = %s, %v; want x=400", position, err)
	}

	client := dial(t, server)
	client.associate(7)
	client.send(gpsUpdate(7, autopilot.DefaultOrigin, testEpoch))
	client.requireClosed()
}

func TestLivenessTimeoutClosesSession(t *testing.T) {
	server := startServer(t, testConfig())
	client := dial(t, server)
	client.associate(7)

	// Heartbeat pause plus the liveness deadline.
	server.clock.WaitForTimers(2)
	server.clock.Advance(21 * time.Second)

	client.requireClosed()
	testutil.RequireEventually(t, ioTimeout, func() bool { return server.ActiveUsers() == 0 },
		"association released after liveness timeout")
}

func TestGpsUpdateExtendsLiveness(t *testing.T) {
	server := startServer(t, testConfig())
	client := dial(t, server)
	client.associate(7)

	server.clock.WaitForTimers(2)
	server.clock.Advance(15 * time.Second)
	client.send(gpsUpdate(7, nearOrigin, server.clock.Now()))
	client.expect(protocol.GpsCoordinatesAck)

	// 25 s after association, 10 s after the update: still alive.
	server.clock.Advance(10 * time.Second)
	client.send(gpsUpdate(7, nearOrigin, server.clock.Now()))
	client.expect(protocol.GpsCoordinatesAck)

	// 21 s after the last update.
	server.clock.WaitForTimers(2)
	server.clock.Advance(21 * time.Second)
	client.requireClosed()
}

func TestReceiveTimeoutClosesSession(t *testing.T) {
	config := testConfig()
	config.ReceiveTimeout = 100 * time.Millisecond
	server := startServer(t, config)

	client := dial(t, server)
	client.requireClosed()

	testutil.RequireEventually(t, ioTimeout, func() bool {
		status, _ := server.Status()
		return status.Sessions == 0
	}, "slot freed after receive timeout")
}

func TestTerminateClosesEverySession(t *testing.T) {
	fake := clock.Fake(testEpoch)
	emulator := autopilot.NewEmulator(autopilot.EmulatorConfig{Clock: fake})
	server := New(testConfig(), emulator, WithClock(fake), WithLogger(testutil.Logger(t)))
	if err := server.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	wrapped := &testServer{Server: server, emulator: emulator, clock: fake}

	clients := []*testClient{dial(t, wrapped), dial(t, wrapped), dial(t, wrapped)}
	clients[0].associate(1)
	clients[1].associate(2)
	clients[1].send(gpsUpdate(2, nearOrigin, testEpoch))
	clients[1].expect(protocol.GpsCoordinatesAck)
	testutil.RequireEventually(t, ioTimeout, func() bool {
		status, _ := server.Status()
		return status.Sessions == 3
	}, "three sessions admitted")

	if err := server.Terminate(); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	for _, client := range clients {
		client.requireClosed()
	}

	if server.Addr() != nil {
		t.Error("Addr non-nil after Terminate")
	}
	if _, err := server.UserPositions(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("UserPositions after Terminate = %v, want ErrNotRunning", err)
	}
	if _, err := emulator.LocalPositionNED(context.Background()); !errors.Is(err, autopilot.ErrNotInitialized) {
		t.Errorf("flight controller still initialized after Terminate: %v", err)
	}

	if err := server.Terminate(); err != nil {
		t.Errorf("second Terminate = %v, want nil", err)
	}

	// A terminated server starts again with fresh state.
	if err := server.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize after Terminate: %v", err)
	}
	if server.ActiveUsers() != 0 {
		t.Errorf("ActiveUsers = %d after restart, want 0", server.ActiveUsers())
	}
	dial(t, wrapped).associate(9)
	if err := server.Terminate(); err != nil {
		t.Errorf("Terminate after restart: %v", err)
	}
}

func TestTerminateWithoutInitialize(t *testing.T) {
	server := New(testConfig(), autopilot.NewEmulator(autopilot.EmulatorConfig{}))
	if err := server.Terminate(); err != nil {
		t.Errorf("Terminate on a never-initialized server = %v, want nil", err)
	}
}

func TestInitializeTwice(t *testing.T) {
	server := startServer(t, testConfig())
	if err := server.Initialize(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Initialize = %v, want ErrAlreadyRunning", err)
	}
}

func TestInitializeFailureLeavesNothingRunning(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("occupying a port: %v", err)
	}
	defer occupied.Close()

	config := testConfig()
	config.Address = occupied.Addr().String()
	emulator := autopilot.NewEmulator(autopilot.EmulatorConfig{})
	server := New(config, emulator, WithLogger(testutil.Logger(t)))

	if err := server.Initialize(context.Background()); err == nil {
		server.Terminate()
		t.Fatal("Initialize succeeded on an occupied port")
	}
	if server.Addr() != nil {
		t.Error("Addr non-nil after failed Initialize")
	}
	// The flight controller was terminated again, so it can be
	// initialized afresh.
	if err := emulator.Initialize(context.Background()); err != nil {
		t.Errorf("flight controller left initialized: %v", err)
	}
}

func TestInitializeRejectsInvalidConfig(t *testing.T) {
	config := testConfig()
	config.MaxAssociatedUsers = 0
	config.HeartbeatInterval = 0
	server := New(config, autopilot.NewEmulator(autopilot.EmulatorConfig{}))
	if err := server.Initialize(context.Background()); err == nil {
		server.Terminate()
		t.Fatal("Initialize accepted an invalid configuration")
	}
}

func TestQueriesRequireRunningServer(t *testing.T) {
	server := New(testConfig(), autopilot.NewEmulator(autopilot.EmulatorConfig{}))
	ctx := context.Background()

	if _, err := server.Position(ctx); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Position = %v, want ErrNotRunning", err)
	}
	if _, err := server.UserPositions(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("UserPositions = %v, want ErrNotRunning", err)
	}
	if err := server.MoveTo(ctx, geo.NedCoordinates{}); !errors.Is(err, ErrNotRunning) {
		t.Errorf("MoveTo = %v, want ErrNotRunning", err)
	}
	if _, err := server.Status(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Status = %v, want ErrNotRunning", err)
	}
	if err := server.MoveTo(ctx, geo.NedCoordinates{Y: math.Inf(1)}); !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("MoveTo(+Inf) = %v, want ErrInvalidCoordinates", err)
	}
}

func TestHeartbeatRunsWhileInitialized(t *testing.T) {
	server := startServer(t, testConfig())

	testutil.RequireEventually(t, ioTimeout, func() bool { return server.emulator.Heartbeats() >= 1 },
		"first heartbeat")
	server.clock.WaitForTimers(1)
	server.clock.Advance(500 * time.Millisecond)
	testutil.RequireEventually(t, ioTimeout, func() bool { return server.emulator.Heartbeats() >= 2 },
		"second heartbeat")

	status, err := server.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.HeartbeatAlive || status.ServerID != testServerID || status.Capacity != 3 {
		t.Errorf("Status = %+v", status)
	}
}
