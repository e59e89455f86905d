package frame

// Command codes, sent from the client to the device.
const (
	CmdAppStart          byte = 0x01
	CmdSendTxtMsg        byte = 0x02
	CmdSendChannelTxtMsg byte = 0x03
	CmdGetContacts       byte = 0x04
	CmdGetDeviceTime     byte = 0x05
	CmdSetDeviceTime     byte = 0x06
	CmdSendSelfAdvert    byte = 0x07
	CmdSetAdvertName     byte = 0x08
	CmdAddUpdateContact  byte = 0x09
	CmdSyncNextMessage   byte = 0x0A
	CmdSetRadioParams    byte = 0x0B
	CmdSetTxPower        byte = 0x0C
	CmdResetPath         byte = 0x0D
	CmdSetAdvertLatLon   byte = 0x0E
	CmdRemoveContact     byte = 0x0F
	CmdShareContact      byte = 0x10
	CmdExportContact     byte = 0x11
	CmdImportContact     byte = 0x12
	CmdReboot            byte = 0x13
	CmdGetBatteryVoltage byte = 0x14
	CmdSetTuningParams   byte = 0x15
	CmdDeviceQuery       byte = 0x16
	CmdExportPrivateKey  byte = 0x17
	CmdImportPrivateKey  byte = 0x18
	CmdSendRawData       byte = 0x19
	CmdSendLogin         byte = 0x1A
	CmdSendStatusReq     byte = 0x1B
	CmdGetChannel        byte = 0x1F
	CmdSetChannel        byte = 0x20
	CmdSignStart         byte = 0x21
	CmdSignData          byte = 0x22
	CmdSignFinish        byte = 0x23
	CmdSendTracePath     byte = 0x24
	CmdSetOtherParams    byte = 0x26
	CmdSendTelemetryReq  byte = 0x27
	CmdSendBinaryReq     byte = 0x32
)

// Response codes, sent from the device to the client in reply to a command.
const (
	RespOk             byte = 0x00
	RespErr            byte = 0x01
	RespContactsStart  byte = 0x02
	RespContact        byte = 0x03
	RespEndOfContacts  byte = 0x04
	RespSelfInfo       byte = 0x05
	RespSent           byte = 0x06
	RespContactMsgRecv byte = 0x07
	RespChannelMsgRecv byte = 0x08
	RespCurrTime       byte = 0x09
	RespNoMoreMessages byte = 0x0A
	RespContactExport  byte = 0x0B
	RespBatteryVoltage byte = 0x0C
	RespDeviceInfo     byte = 0x0D
	RespPrivateKey     byte = 0x0E
	RespDisabled       byte = 0x0F
	RespChannelInfo    byte = 0x12
	RespSignStart      byte = 0x13
	RespSignature      byte = 0x14
)

// Push codes, sent from the device without a preceding command. Any code at
// or above PushFloor is a push and must never be matched to an in-flight
// command.
const (
	PushFloor byte = 0x80

	PushAdvert         byte = 0x80
	PushPathUpdated    byte = 0x81
	PushSendConfirmed  byte = 0x82
	PushMsgWaiting     byte = 0x83
	PushRawData        byte = 0x84
	PushLoginSuccess   byte = 0x85
	PushStatusResponse byte = 0x87
	PushLogRxData      byte = 0x88
	PushTraceData      byte = 0x89
	PushNewAdvert      byte = 0x8A
	PushTelemetry      byte = 0x8B
	PushBinaryResponse byte = 0x8C
)

// IsPushCode reports whether code identifies an unsolicited push frame.
func IsPushCode(code byte) bool {
	return code >= PushFloor
}

// Route types reported in a Sent response.
const (
	RouteTypeDirect byte = 0
	RouteTypeFlood  byte = 1
)

// Text message types carried by SendTxtMsg and the message responses.
const (
	TxtTypePlain  byte = 0
	TxtTypeCLI    byte = 1
	TxtTypeSigned byte = 2
)

// Contact types stored in a ContactRecord.
const (
	ContactTypeNone     byte = 0
	ContactTypeChat     byte = 1
	ContactTypeRepeater byte = 2
	ContactTypeRoom     byte = 3
)

// Fixed field widths.
const (
	PublicKeySize  = 32
	PrivateKeySize = 64
	SignatureSize  = 64
	PrefixSize     = 6
	NameSize       = 32
	OutPathSize    = 64
	SecretSize     = 16
)

// MaxTextSize bounds the text of a single message frame.
const MaxTextSize = 160

// Domain bounds for radio and location fields.
const (
	MinSpreadingFactor = 5
	MaxSpreadingFactor = 12
	MinCodingRate      = 5
	MaxCodingRate      = 8
	MinFrequencyKHz    = 300000
	MaxFrequencyKHz    = 2500000
	MinBandwidthHz     = 7000
	MaxBandwidthHz     = 500000
	MaxLatitudeE6      = 90000000
	MaxLongitudeE6     = 180000000
)
