package radio

import "github.com/dmitrijs2005/mclink/internal/meshcore/frame"

func (n *Node) getChannel(v frame.GetChannel) ([]frame.Response, byte) {
	if int(v.Index) >= MaxChannels {
		return nil, frame.ECodeIllegalArg
	}
	ch := n.channels[v.Index]
	return []frame.Response{frame.ChannelInfo{
		Index:  v.Index,
		Name:   ch.name,
		Secret: ch.secret,
	}}, 0
}

func (n *Node) setChannel(v frame.SetChannel) ([]frame.Response, byte) {
	if int(v.Index) >= MaxChannels {
		return nil, frame.ECodeIllegalArg
	}
	if len(v.Name) > frame.NameSize {
		return nil, frame.ECodeIllegalArg
	}
	// an empty name clears the slot
	n.channels[v.Index] = channelSlot{name: v.Name, secret: v.Secret}
	if v.Name == "" {
		n.channels[v.Index].secret = [frame.SecretSize]byte{}
	}
	return okResp(), 0
}

// channelInUse reports whether a slot can carry traffic.
func (n *Node) channelInUse(idx byte) bool {
	return int(idx) < MaxChannels && n.channels[idx].name != ""
}
