// Package protocol implements the OLTK framed binary wire protocol.
//
// Every frame starts with a fixed 28-byte big-endian header followed by a
// JSON metadata section and an optional binary section:
//
//	magic(4) version(2) type(2) flags(4) request_id(8) meta_len(4) bin_len(4)
//
// The magic is the ASCII bytes "OLTK". Frames that fail header validation
// are unrecoverable; callers must close the connection.
package protocol

import "fmt"

const (
	// Magic is the frame marker, ASCII "OLTK" read as a big-endian uint32.
	Magic uint32 = 0x4F4C544B

	// Version is the only supported protocol version.
	Version uint16 = 1

	// HeaderSize is the fixed header length in bytes.
	HeaderSize = 28

	// MaxMetaSize caps the JSON metadata section at 1 MiB.
	MaxMetaSize = 1 << 20

	// MaxBinarySize caps the binary section at 32 MiB.
	MaxBinarySize = 32 << 20
)

// PacketType identifies the operation a frame carries.
type PacketType uint16

const (
	TypeAuthRegister        PacketType = 1
	TypeAuthLogin           PacketType = 2
	TypeAuthOk              PacketType = 3
	TypeAuthError           PacketType = 4
	TypeUserListUpdate      PacketType = 5
	TypePresenceUpdate      PacketType = 6
	TypeGroupCreate         PacketType = 7
	TypeGroupJoin           PacketType = 8
	TypeGroupLeave          PacketType = 9
	TypeGroupAdmin          PacketType = 10
	TypeMessageSend         PacketType = 11
	TypeMessageDeliver      PacketType = 12
	TypeHistoryFetch        PacketType = 13
	TypeHistoryResponse     PacketType = 14
	TypeFileOffer           PacketType = 15
	TypeFileAccept          PacketType = 16
	TypeFileUploadChunk     PacketType = 17
	TypeFileUploadDone      PacketType = 18
	TypeFileDownloadRequest PacketType = 19
	TypeFileDownloadChunk   PacketType = 20
	TypeFileDone            PacketType = 21
)

var packetTypeNames = map[PacketType]string{
	TypeAuthRegister:        "AuthRegister",
	TypeAuthLogin:           "AuthLogin",
	TypeAuthOk:              "AuthOk",
	TypeAuthError:           "AuthError",
	TypeUserListUpdate:      "UserListUpdate",
	TypePresenceUpdate:      "PresenceUpdate",
	TypeGroupCreate:         "GroupCreate",
	TypeGroupJoin:           "GroupJoin",
	TypeGroupLeave:          "GroupLeave",
	TypeGroupAdmin:          "GroupAdmin",
	TypeMessageSend:         "MessageSend",
	TypeMessageDeliver:      "MessageDeliver",
	TypeHistoryFetch:        "HistoryFetch",
	TypeHistoryResponse:     "HistoryResponse",
	TypeFileOffer:           "FileOffer",
	TypeFileAccept:          "FileAccept",
	TypeFileUploadChunk:     "FileUploadChunk",
	TypeFileUploadDone:      "FileUploadDone",
	TypeFileDownloadRequest: "FileDownloadRequest",
	TypeFileDownloadChunk:   "FileDownloadChunk",
	TypeFileDone:            "FileDone",
}

// String returns the packet type name, or a numeric fallback for
// unknown tags.
func (t PacketType) String() string {
	if name, ok := packetTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("PacketType(%d)", uint16(t))
}

// Packet is one decoded OLTK frame. Meta holds the raw JSON metadata
// section; Binary holds the optional binary section (file chunks).
type Packet struct {
	Type      PacketType
	Flags     uint32
	RequestID uint64
	Meta      []byte
	Binary    []byte
}
