package radio

import (
	"encoding/binary"
	"time"

	"github.com/dmitrijs2005/mclink/internal/common"
	"github.com/dmitrijs2005/mclink/internal/meshcore/frame"
)

// Round-trip estimates handed back in Sent responses, in milliseconds.
// Direct routes grow with the hop count; floods get one flat generous
// budget.
const (
	directTimeoutBaseMs = 2000
	perHopTimeoutMs     = 500
	floodTimeoutMs      = 9000
)

func estTimeoutMs(route byte, hops int) uint32 {
	if route == frame.RouteTypeFlood {
		return floodTimeoutMs
	}
	return directTimeoutBaseMs + uint32(hops)*perHopTimeoutMs
}

func newAckCode() uint32 {
	for {
		if c := common.GenerateRandUint32(); c != 0 {
			return c
		}
	}
}

func validText(text string) bool {
	return text != "" && len(text) <= frame.MaxTextSize
}

func (n *Node) findByPrefix(prefix [frame.PrefixSize]byte) *frame.ContactRecord {
	for _, c := range n.contacts {
		if c.Prefix() == prefix {
			return c
		}
	}
	return nil
}

// routeTo picks the route for one contact: direct over the stored path when
// there is one, flood otherwise.
func routeTo(c *frame.ContactRecord) (route byte, hops int) {
	if c.HasDirectPath() {
		return frame.RouteTypeDirect, int(c.OutPathLen)
	}
	return frame.RouteTypeFlood, 0
}

func (n *Node) sendText(v frame.SendTxtMsg) ([]frame.Response, byte) {
	if !validText(v.Text) {
		return nil, frame.ECodeIllegalArg
	}
	c := n.findByPrefix(v.Prefix)
	if c == nil {
		return nil, frame.ECodeNotFound
	}
	route, hops := routeTo(c)
	ack := newAckCode()
	n.logger.Debug("text queued", "to", c.Name, "route", route, "attempt", v.Attempt, "ack_code", ack)
	n.scheduleConfirm(ack, route)
	return []frame.Response{frame.Sent{
		RouteType: route,
		AckCode:   ack,
		TimeoutMs: estTimeoutMs(route, hops),
	}}, 0
}

func (n *Node) sendChannelText(v frame.SendChannelTxtMsg) ([]frame.Response, byte) {
	if !validText(v.Text) || !n.channelInUse(v.ChannelIdx) {
		return nil, frame.ECodeIllegalArg
	}
	n.logger.Debug("channel text queued", "channel", v.ChannelIdx)
	// group traffic floods and is never acked
	return []frame.Response{frame.Sent{
		RouteType: frame.RouteTypeFlood,
		AckCode:   0,
		TimeoutMs: floodTimeoutMs,
	}}, 0
}

func (n *Node) sendLogin(v frame.SendLogin) ([]frame.Response, byte) {
	c := n.findByPrefix(v.Prefix)
	if c == nil {
		return nil, frame.ECodeNotFound
	}
	route, hops := routeTo(c)
	ack := newAckCode()
	n.scheduleConfirm(ack, route)
	// the remote node answers with its own push once the login lands
	n.schedulePush(2*n.ackDelay, frame.LoginSuccess{Prefix: v.Prefix, IsAdmin: true})
	return []frame.Response{frame.Sent{
		RouteType: route,
		AckCode:   ack,
		TimeoutMs: estTimeoutMs(route, hops),
	}}, 0
}

func (n *Node) sendStatusReq(v frame.SendStatusReq) ([]frame.Response, byte) {
	c := n.findByPrefix(v.Prefix)
	if c == nil {
		return nil, frame.ECodeNotFound
	}
	route, hops := routeTo(c)
	ack := newAckCode()
	n.scheduleConfirm(ack, route)
	n.schedulePush(2*n.ackDelay, frame.StatusResponse{Prefix: v.Prefix, Payload: n.statusBlob()})
	return []frame.Response{frame.Sent{
		RouteType: route,
		AckCode:   ack,
		TimeoutMs: estTimeoutMs(route, hops),
	}}, 0
}

func (n *Node) sendTelemetryReq(v frame.SendTelemetryReq) ([]frame.Response, byte) {
	c := n.findByPrefix(v.Prefix)
	if c == nil {
		return nil, frame.ECodeNotFound
	}
	route, hops := routeTo(c)
	ack := newAckCode()
	n.scheduleConfirm(ack, route)
	n.schedulePush(2*n.ackDelay, frame.Telemetry{Prefix: v.Prefix, Payload: n.telemetryBlob()})
	return []frame.Response{frame.Sent{
		RouteType: route,
		AckCode:   ack,
		TimeoutMs: estTimeoutMs(route, hops),
	}}, 0
}

func (n *Node) sendBinaryReq(v frame.SendBinaryReq) ([]frame.Response, byte) {
	c := n.findByPrefix(v.Prefix)
	if c == nil {
		return nil, frame.ECodeNotFound
	}
	route, hops := routeTo(c)
	ack := newAckCode()
	n.scheduleConfirm(ack, route)
	// the simulated remote echoes the request payload back
	echo := append([]byte{v.ReqType}, v.Payload...)
	n.schedulePush(2*n.ackDelay, frame.BinaryResponse{Prefix: v.Prefix, Payload: echo})
	return []frame.Response{frame.Sent{
		RouteType: route,
		AckCode:   ack,
		TimeoutMs: estTimeoutMs(route, hops),
	}}, 0
}

func (n *Node) sendTracePath(v frame.SendTracePath) ([]frame.Response, byte) {
	if len(v.Path) == 0 || len(v.Path) > frame.OutPathSize {
		return nil, frame.ECodeIllegalArg
	}
	// the trace comes back correlated by its tag, not by an ack code
	snrs := make([]int8, len(v.Path))
	for i := range snrs {
		snrs[i] = int8(-8 - 2*i)
	}
	n.schedulePush(2*n.ackDelay, frame.TraceData{
		Tag:   v.Tag,
		Auth:  v.Auth,
		Flags: v.Flags,
		Path:  append([]byte(nil), v.Path...),
		SNRs:  snrs,
	})
	return []frame.Response{frame.Sent{
		RouteType: frame.RouteTypeDirect,
		AckCode:   v.Tag,
		TimeoutMs: estTimeoutMs(frame.RouteTypeDirect, len(v.Path)),
	}}, 0
}

func (n *Node) sendRawData(v frame.SendRawData) ([]frame.Response, byte) {
	if len(v.Payload) == 0 {
		return nil, frame.ECodeIllegalArg
	}
	route := frame.RouteTypeFlood
	if len(v.Path) > 0 {
		route = frame.RouteTypeDirect
	}
	return []frame.Response{frame.Sent{
		RouteType: route,
		AckCode:   0,
		TimeoutMs: estTimeoutMs(route, len(v.Path)),
	}}, 0
}

// scheduleConfirm emits the delivery confirmation after the simulated
// round trip, unless this one falls into the configured drop rate.
func (n *Node) scheduleConfirm(ack uint32, route byte) {
	if n.randFloat() < n.dropRate {
		n.logger.Debug("simulating lost confirmation", "ack_code", ack)
		return
	}
	delay := n.ackDelay
	if route == frame.RouteTypeFlood {
		delay *= 3
	}
	rtt := uint32(delay / time.Millisecond)
	time.AfterFunc(delay, func() {
		n.emitPush(frame.SendConfirmed{AckCode: ack, RoundTripMs: rtt})
	})
}

func (n *Node) schedulePush(delay time.Duration, p frame.Push) {
	time.AfterFunc(delay, func() {
		n.emitPush(p)
	})
}

// statusBlob mimics a repeater status report: battery, uptime seconds and
// the mailbox backlog.
func (n *Node) statusBlob() []byte {
	out := make([]byte, 0, 8)
	out = binary.LittleEndian.AppendUint16(out, n.batteryMV)
	out = binary.LittleEndian.AppendUint32(out, uint32(n.now().Unix()%86400))
	out = binary.LittleEndian.AppendUint16(out, uint16(len(n.mailbox)))
	return out
}

// telemetryBlob is a minimal Cayenne LPP record: channel 1, voltage.
func (n *Node) telemetryBlob() []byte {
	centi := n.batteryMV / 10
	return []byte{1, 0x74, byte(centi >> 8), byte(centi)}
}
