package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/mclink/internal/client/models"
	"github.com/dmitrijs2005/mclink/internal/client/services"
	"github.com/dmitrijs2005/mclink/internal/common"
	"github.com/dmitrijs2005/mclink/internal/meshcore/frame"
)

// ------------ fakes ------------

type fakeNode struct {
	connected bool
	self      frame.SelfInfo

	queryOut frame.DeviceInfo
	queryErr error

	timeOut      uint32
	timeErr      error
	setTimeEpoch uint32
	setTimeErr   error

	batteryOut uint16
	batteryErr error

	renameName string
	renameErr  error

	advertFlood  bool
	advertCalled bool
	advertErr    error

	channels   map[byte]frame.ChannelInfo
	channelErr error

	setChIdx  byte
	setChName string
	setChPass string
	setChErr  error

	loginPrefix [frame.PrefixSize]byte
	loginPass   string
	loginSent   frame.Sent
	loginErr    error

	statusPrefix [frame.PrefixSize]byte
	statusSent   frame.Sent
	statusErr    error

	exportSelfCalled bool
	exportSelfOut    frame.AdvertBlock
	exportSelfErr    error
	exportKey        [frame.PublicKeySize]byte
	exportOut        frame.AdvertBlock
	exportErr        error

	importAdvert frame.AdvertBlock
	importErr    error

	rebootCalled bool
	rebootErr    error
}

func (f *fakeNode) Connect(ctx context.Context) (frame.SelfInfo, error) {
	f.connected = true
	return f.self, nil
}
func (f *fakeNode) Connected() bool      { return f.connected }
func (f *fakeNode) Close() error         { return nil }
func (f *fakeNode) Self() frame.SelfInfo { return f.self }
func (f *fakeNode) StartReconnectWatcher(ctx context.Context, interval time.Duration) {}
func (f *fakeNode) Query(ctx context.Context) (frame.DeviceInfo, error) {
	return f.queryOut, f.queryErr
}
func (f *fakeNode) DeviceTime(ctx context.Context) (uint32, error) { return f.timeOut, f.timeErr }
func (f *fakeNode) SetDeviceTime(ctx context.Context, epoch uint32) error {
	f.setTimeEpoch = epoch
	return f.setTimeErr
}
func (f *fakeNode) Battery(ctx context.Context) (uint16, error) { return f.batteryOut, f.batteryErr }
func (f *fakeNode) SetAdvertName(ctx context.Context, name string) error {
	f.renameName = name
	return f.renameErr
}
func (f *fakeNode) SendSelfAdvert(ctx context.Context, flood bool) error {
	f.advertCalled = true
	f.advertFlood = flood
	return f.advertErr
}
func (f *fakeNode) Channel(ctx context.Context, idx byte) (frame.ChannelInfo, error) {
	if f.channelErr != nil {
		return frame.ChannelInfo{}, f.channelErr
	}
	return f.channels[idx], nil
}
func (f *fakeNode) SetChannelPassphrase(ctx context.Context, idx byte, name, passphrase string) error {
	f.setChIdx = idx
	f.setChName = name
	f.setChPass = passphrase
	return f.setChErr
}
func (f *fakeNode) Login(ctx context.Context, prefix [frame.PrefixSize]byte, password string) (frame.Sent, error) {
	f.loginPrefix = prefix
	f.loginPass = password
	return f.loginSent, f.loginErr
}
func (f *fakeNode) StatusReq(ctx context.Context, prefix [frame.PrefixSize]byte) (frame.Sent, error) {
	f.statusPrefix = prefix
	return f.statusSent, f.statusErr
}
func (f *fakeNode) ExportSelf(ctx context.Context) (frame.AdvertBlock, error) {
	f.exportSelfCalled = true
	return f.exportSelfOut, f.exportSelfErr
}
func (f *fakeNode) ExportContact(ctx context.Context, key [frame.PublicKeySize]byte) (frame.AdvertBlock, error) {
	f.exportKey = key
	return f.exportOut, f.exportErr
}
func (f *fakeNode) ImportContact(ctx context.Context, advert frame.AdvertBlock) error {
	f.importAdvert = advert
	return f.importErr
}
func (f *fakeNode) Reboot(ctx context.Context) error {
	f.rebootCalled = true
	return f.rebootErr
}

type fakeBook struct {
	syncRes    services.SyncResult
	syncErr    error
	listOut    []models.Contact
	listErr    error
	resolveErr error
}

func (f *fakeBook) Sync(ctx context.Context) (services.SyncResult, error) {
	return f.syncRes, f.syncErr
}
func (f *fakeBook) List(ctx context.Context) ([]models.Contact, error) {
	return f.listOut, f.listErr
}
func (f *fakeBook) Resolve(ctx context.Context, query string) (*models.Contact, error) {
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	for i := range f.listOut {
		if strings.EqualFold(f.listOut[i].Name, query) {
			return &f.listOut[i], nil
		}
	}
	return nil, common.ErrorNotFound
}

type fakeMsgr struct {
	sendKey  []byte
	sendText string
	sendOut  *models.Message
	sendErr  error

	chIdx  byte
	chText string
	chErr  error

	drainCalled bool
	drainOut    []models.Message
	drainErr    error

	historyKey []byte
	historyOut []models.Message
	recentOut  []models.Message
	listErr    error
}

func (f *fakeMsgr) Send(ctx context.Context, contactKey []byte, text string) (*models.Message, error) {
	f.sendKey = contactKey
	f.sendText = text
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	if f.sendOut != nil {
		return f.sendOut, nil
	}
	return &models.Message{Status: models.StatusSent}, nil
}
func (f *fakeMsgr) SendChannel(ctx context.Context, idx byte, text string) (*models.Message, error) {
	f.chIdx = idx
	f.chText = text
	if f.chErr != nil {
		return nil, f.chErr
	}
	return &models.Message{Status: models.StatusSent, ChannelIdx: int(idx)}, nil
}
func (f *fakeMsgr) Drain(ctx context.Context) ([]models.Message, error) {
	f.drainCalled = true
	return f.drainOut, f.drainErr
}
func (f *fakeMsgr) History(ctx context.Context, contactKey []byte, limit int) ([]models.Message, error) {
	f.historyKey = contactKey
	return f.historyOut, f.listErr
}
func (f *fakeMsgr) Recent(ctx context.Context, limit int) ([]models.Message, error) {
	return f.recentOut, f.listErr
}
func (f *fakeMsgr) Watch(ctx context.Context) {}

// ------------ helpers ------------

func quietPrintln(t *testing.T) {
	t.Helper()
	orig := printlnFn
	printlnFn = func(...any) (int, error) { return 0, nil }
	t.Cleanup(func() { printlnFn = orig })
}

func stubPassword(t *testing.T, pw string) {
	t.Helper()
	orig := getPassword
	getPassword = func(prompt string, w io.Writer) ([]byte, error) {
		return []byte(pw), nil
	}
	t.Cleanup(func() { getPassword = orig })
}

func newTestApp(n *fakeNode, b *fakeBook, m *fakeMsgr) *App {
	return &App{
		device:   n,
		contacts: b,
		messages: m,
		reader:   bufio.NewReader(strings.NewReader("")),
	}
}

func testContact(name string, seed byte) models.Contact {
	key := bytes.Repeat([]byte{seed}, frame.PublicKeySize)
	return models.Contact{PublicKey: key, Name: name, Type: frame.ContactTypeChat, OutPathLen: -1}
}

// ------------ tests ------------

func TestSend_ResolvesContactAndJoinsText(t *testing.T) {
	ctx := context.Background()
	book := &fakeBook{listOut: []models.Contact{testContact("alice", 0xAA)}}
	msgr := &fakeMsgr{}
	app := newTestApp(&fakeNode{}, book, msgr)

	err := app.Send(ctx, []string{"alice", "hello", "there"})
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte{0xAA}, frame.PublicKeySize), msgr.sendKey)
	require.Equal(t, "hello there", msgr.sendText)
}

func TestSend_UsageWithoutText(t *testing.T) {
	quietPrintln(t)
	msgr := &fakeMsgr{}
	app := newTestApp(&fakeNode{}, &fakeBook{}, msgr)

	err := app.Send(context.Background(), []string{"alice"})
	require.NoError(t, err)
	require.Nil(t, msgr.sendKey)
}

func TestSend_UnknownContact(t *testing.T) {
	msgr := &fakeMsgr{}
	app := newTestApp(&fakeNode{}, &fakeBook{}, msgr)

	err := app.Send(context.Background(), []string{"nobody", "hi"})
	require.ErrorIs(t, err, common.ErrorNotFound)
	require.Nil(t, msgr.sendKey)
}

func TestChSend_ParsesIndex(t *testing.T) {
	msgr := &fakeMsgr{}
	app := newTestApp(&fakeNode{}, &fakeBook{}, msgr)

	err := app.ChSend(context.Background(), []string{"2", "team", "lunch"})
	require.NoError(t, err)
	require.Equal(t, byte(2), msgr.chIdx)
	require.Equal(t, "team lunch", msgr.chText)
}

func TestChSend_RejectsBadIndex(t *testing.T) {
	quietPrintln(t)
	msgr := &fakeMsgr{}
	app := newTestApp(&fakeNode{}, &fakeBook{}, msgr)

	err := app.ChSend(context.Background(), []string{"chan", "hi"})
	require.NoError(t, err)
	require.Empty(t, msgr.chText)
}

func TestSync_ReturnsServiceError(t *testing.T) {
	wantErr := errors.New("link down")
	app := newTestApp(&fakeNode{}, &fakeBook{syncErr: wantErr}, &fakeMsgr{})

	err := app.Sync(context.Background())
	require.ErrorIs(t, err, wantErr)
}

func TestRename_JoinsArgs(t *testing.T) {
	node := &fakeNode{}
	app := newTestApp(node, &fakeBook{}, &fakeMsgr{})

	err := app.Rename(context.Background(), []string{"North", "Ridge"})
	require.NoError(t, err)
	require.Equal(t, "North Ridge", node.renameName)
}

func TestRename_PromptsWhenNoArgs(t *testing.T) {
	orig := getSimpleText
	getSimpleText = func(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
		return "Basecamp", nil
	}
	t.Cleanup(func() { getSimpleText = orig })

	node := &fakeNode{}
	app := newTestApp(node, &fakeBook{}, &fakeMsgr{})

	err := app.Rename(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, "Basecamp", node.renameName)
}

func TestAdvert_FloodFlag(t *testing.T) {
	node := &fakeNode{}
	app := newTestApp(node, &fakeBook{}, &fakeMsgr{})

	require.NoError(t, app.Advert(context.Background(), nil))
	require.True(t, node.advertCalled)
	require.False(t, node.advertFlood)

	require.NoError(t, app.Advert(context.Background(), []string{"flood"}))
	require.True(t, node.advertFlood)
}

func TestTime_SyncSetsClockFirst(t *testing.T) {
	node := &fakeNode{timeOut: 1700000000}
	app := newTestApp(node, &fakeBook{}, &fakeMsgr{})

	before := uint32(time.Now().Unix())
	err := app.Time(context.Background(), []string{"sync"})
	require.NoError(t, err)
	require.GreaterOrEqual(t, node.setTimeEpoch, before)
}

func TestSetChannel_DerivesFromPassphrase(t *testing.T) {
	stubPassword(t, "sesame")
	node := &fakeNode{}
	app := newTestApp(node, &fakeBook{}, &fakeMsgr{})

	err := app.SetChannel(context.Background(), []string{"1", "hikers"})
	require.NoError(t, err)
	require.Equal(t, byte(1), node.setChIdx)
	require.Equal(t, "hikers", node.setChName)
	require.Equal(t, "sesame", node.setChPass)
}

func TestLogin_SendsKeyPrefix(t *testing.T) {
	stubPassword(t, "admin123")
	node := &fakeNode{loginSent: frame.Sent{RouteType: frame.RouteTypeDirect, TimeoutMs: 2500}}
	book := &fakeBook{listOut: []models.Contact{testContact("repeater-7", 0x42)}}
	app := newTestApp(node, book, &fakeMsgr{})

	err := app.Login(context.Background(), []string{"repeater-7"})
	require.NoError(t, err)
	var wantPrefix [frame.PrefixSize]byte
	copy(wantPrefix[:], bytes.Repeat([]byte{0x42}, frame.PrefixSize))
	require.Equal(t, wantPrefix, node.loginPrefix)
	require.Equal(t, "admin123", node.loginPass)
}

func TestStatus_SendsKeyPrefix(t *testing.T) {
	node := &fakeNode{statusSent: frame.Sent{RouteType: frame.RouteTypeFlood, TimeoutMs: 9000}}
	book := &fakeBook{listOut: []models.Contact{testContact("repeater-7", 0x42)}}
	app := newTestApp(node, book, &fakeMsgr{})

	err := app.Status(context.Background(), []string{"repeater-7"})
	require.NoError(t, err)
	require.Equal(t, byte(0x42), node.statusPrefix[0])
}

func TestExport_SelfByDefault(t *testing.T) {
	node := &fakeNode{exportSelfOut: frame.AdvertBlock{Name: "me"}}
	app := newTestApp(node, &fakeBook{}, &fakeMsgr{})

	err := app.Export(context.Background(), nil)
	require.NoError(t, err)
	require.True(t, node.exportSelfCalled)
}

func TestExport_NamedContact(t *testing.T) {
	node := &fakeNode{exportOut: frame.AdvertBlock{Name: "alice"}}
	book := &fakeBook{listOut: []models.Contact{testContact("alice", 0xAA)}}
	app := newTestApp(node, book, &fakeMsgr{})

	err := app.Export(context.Background(), []string{"alice"})
	require.NoError(t, err)
	require.Equal(t, byte(0xAA), node.exportKey[0])
	require.False(t, node.exportSelfCalled)
}

func TestImport_ParsesHexAdvert(t *testing.T) {
	want := frame.AdvertBlock{Timestamp: 1700000000, Flags: 1, Name: "alice"}
	copy(want.PublicKey[:], bytes.Repeat([]byte{0xAA}, frame.PublicKeySize))
	raw, err := want.MarshalBinary()
	require.NoError(t, err)

	node := &fakeNode{}
	app := newTestApp(node, &fakeBook{}, &fakeMsgr{})

	err = app.Import(context.Background(), []string{hex.EncodeToString(raw)})
	require.NoError(t, err)
	require.Equal(t, want.PublicKey, node.importAdvert.PublicKey)
	require.Equal(t, want.Name, node.importAdvert.Name)
}

func TestImport_RejectsBadHex(t *testing.T) {
	node := &fakeNode{}
	app := newTestApp(node, &fakeBook{}, &fakeMsgr{})

	err := app.Import(context.Background(), []string{"zz-not-hex"})
	require.Error(t, err)
	require.Empty(t, node.importAdvert.Name)
}

func TestMessages_DrainsWhenLinked(t *testing.T) {
	msgr := &fakeMsgr{recentOut: []models.Message{{Text: "hi", Direction: models.DirectionIn, ChannelIdx: models.DirectMessage}}}
	app := newTestApp(&fakeNode{connected: true}, &fakeBook{}, msgr)

	err := app.Messages(context.Background(), nil)
	require.NoError(t, err)
	require.True(t, msgr.drainCalled)
}

func TestMessages_HistoryForContact(t *testing.T) {
	book := &fakeBook{listOut: []models.Contact{testContact("alice", 0xAA)}}
	msgr := &fakeMsgr{}
	app := newTestApp(&fakeNode{}, book, msgr)

	err := app.Messages(context.Background(), []string{"alice"})
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte{0xAA}, frame.PublicKeySize), msgr.historyKey)
	require.False(t, msgr.drainCalled)
}

func TestReboot_ClosesLink(t *testing.T) {
	node := &fakeNode{}
	app := newTestApp(node, &fakeBook{}, &fakeMsgr{})

	require.NoError(t, app.Reboot(context.Background()))
	require.True(t, node.rebootCalled)
}

func TestFormatMessage(t *testing.T) {
	aliceKey := bytes.Repeat([]byte{0xAA}, frame.PublicKeySize)
	names := map[string]string{hex.EncodeToString(aliceKey): "alice"}

	out := models.Message{
		ContactKey: aliceKey,
		Direction:  models.DirectionOut,
		ChannelIdx: models.DirectMessage,
		Text:       "hello",
		SenderTS:   1700000000,
		Status:     models.StatusDelivered,
		RTTMs:      312,
	}
	line := formatMessage(out, names)
	require.Contains(t, line, "-> alice: hello")
	require.Contains(t, line, "delivered, 312 ms")

	in := models.Message{
		Direction:  models.DirectionIn,
		ChannelIdx: 2,
		Text:       "meet at noon",
		SenderTS:   1700000060,
		Status:     models.StatusReceived,
	}
	line = formatMessage(in, names)
	require.Contains(t, line, "<- #2: meet at noon")
	require.NotContains(t, line, "(received)")
}
