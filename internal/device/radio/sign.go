package radio

import (
	"github.com/dmitrijs2005/mclink/internal/common"
	"github.com/dmitrijs2005/mclink/internal/meshcore/frame"
)

const (
	maxSignSessions = 4
	maxSignLen      = 64 * 1024
)

func (n *Node) signStart(v frame.SignStart) ([]frame.Response, byte) {
	if v.ExpectedLen == 0 || v.ExpectedLen > maxSignLen {
		return nil, frame.ECodeIllegalArg
	}
	if len(n.signSessions) >= maxSignSessions {
		return nil, frame.ECodeBadState
	}
	var id uint32
	for {
		id = common.GenerateRandUint32()
		if _, taken := n.signSessions[id]; id != 0 && !taken {
			break
		}
	}
	n.signSessions[id] = &signSession{expected: v.ExpectedLen}
	n.logger.Debug("signing session opened", "session_id", id, "expected_len", v.ExpectedLen)
	return []frame.Response{frame.SignStarted{SessionID: id}}, 0
}

func (n *Node) signData(v frame.SignData) ([]frame.Response, byte) {
	s, ok := n.signSessions[v.SessionID]
	if !ok {
		return nil, frame.ECodeBadState
	}
	if len(v.Chunk) == 0 || uint32(len(s.buf))+uint32(len(v.Chunk)) > s.expected {
		return nil, frame.ECodeIllegalArg
	}
	s.buf = append(s.buf, v.Chunk...)
	return okResp(), 0
}

func (n *Node) signFinish(v frame.SignFinish) ([]frame.Response, byte) {
	s, ok := n.signSessions[v.SessionID]
	if !ok {
		return nil, frame.ECodeBadState
	}
	delete(n.signSessions, v.SessionID)
	if uint32(len(s.buf)) != s.expected {
		return nil, frame.ECodeBadState
	}
	return []frame.Response{frame.Signature{Sig: n.sign(s.buf)}}, 0
}
