// Package bridge implements the synchronous request/response protocol the
// interpreter uses for all user-visible I/O. Every request is answered by
// exactly one response over a persistent local connection; messages are
// CBOR-encoded and length-prefixed.
package bridge

import "fmt"

// Kind identifies a message.
type Kind uint8

const (
	KindAck  Kind = 1
	KindNack Kind = 2

	KindPrintInt   Kind = 10
	KindPrintASCII Kind = 11
	KindFlush      Kind = 12
	KindDebug      Kind = 13
	KindClose      Kind = 14

	KindReadInt      Kind = 20
	KindReadIntAns   Kind = 21
	KindReadASCII    Kind = 22
	KindReadASCIIAns Kind = 23
	KindRandom       Kind = 24
	KindRandomAns    Kind = 25

	KindDivByZero    Kind = 30
	KindDivByZeroAns Kind = 31
	KindModByZero    Kind = 32
	KindModByZeroAns Kind = 33
)

var kindNames = map[Kind]string{
	KindAck:          "Ack",
	KindNack:         "Nack",
	KindPrintInt:     "PrintInt",
	KindPrintASCII:   "PrintASCII",
	KindFlush:        "Flush",
	KindDebug:        "Debug",
	KindClose:        "Close",
	KindReadInt:      "ReadInt",
	KindReadIntAns:   "ReadIntAns",
	KindReadASCII:    "ReadASCII",
	KindReadASCIIAns: "ReadASCIIAns",
	KindRandom:       "Random",
	KindRandomAns:    "RandomAns",
	KindDivByZero:    "DivByZero",
	KindDivByZeroAns: "DivByZeroAns",
	KindModByZero:    "ModByZero",
	KindModByZeroAns: "ModByZeroAns",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Reply returns the response kind a request of kind k must receive.
// ok is false if k is not a request.
func (k Kind) Reply() (Kind, bool) {
	switch k {
	case KindPrintInt, KindPrintASCII, KindFlush, KindDebug, KindClose:
		return KindAck, true
	case KindReadInt:
		return KindReadIntAns, true
	case KindReadASCII:
		return KindReadASCIIAns, true
	case KindRandom:
		return KindRandomAns, true
	case KindDivByZero:
		return KindDivByZeroAns, true
	case KindModByZero:
		return KindModByZeroAns, true
	}
	return 0, false
}

// Message is one protocol frame. Which fields are meaningful depends on Kind:
// Int carries PrintInt/PrintASCII payloads and every *Ans value, A and B carry
// the operands of DivByZero/ModByZero, Text carries Debug and Nack reasons.
type Message struct {
	Kind     Kind   `cbor:"1,keyasint"`
	Int      int64  `cbor:"2,keyasint,omitempty"`
	A        int64  `cbor:"3,keyasint,omitempty"`
	B        int64  `cbor:"4,keyasint,omitempty"`
	Text     string `cbor:"5,keyasint,omitempty"`
	Shutdown bool   `cbor:"6,keyasint,omitempty"` // Close: companion should exit
}

func (m *Message) String() string {
	switch m.Kind {
	case KindPrintInt, KindPrintASCII, KindReadIntAns, KindReadASCIIAns,
		KindRandomAns, KindDivByZeroAns, KindModByZeroAns:
		return fmt.Sprintf("%s(%d)", m.Kind, m.Int)
	case KindDivByZero, KindModByZero:
		return fmt.Sprintf("%s(%d,%d)", m.Kind, m.A, m.B)
	case KindDebug, KindNack:
		return fmt.Sprintf("%s(%q)", m.Kind, m.Text)
	case KindClose:
		return fmt.Sprintf("%s(shutdown=%t)", m.Kind, m.Shutdown)
	}
	return m.Kind.String()
}
