package domain

import "fmt"

// Opcode is the DNS message opcode (header bits 1-4).
type Opcode uint8

const (
	OpcodeQuery  Opcode = 0
	OpcodeIQuery Opcode = 1
	OpcodeStatus Opcode = 2
)

// Flags captures the single-bit and small bitfield header flags of §4.1,
// exposed as named booleans/values rather than a raw uint16 so callers
// never have to hand-roll bitmasking.
type Flags struct {
	QR     bool // true: response
	Opcode Opcode
	AA     bool // authoritative answer
	TC     bool // truncated
	RD     bool // recursion desired
	RA     bool // recursion available
	RCode  RCode
}

// Message is the fully decoded form of a DNS packet: header flags plus the
// question and the three resource-record sections. This spec's dispatcher
// always sees exactly one question (qdcount=1 is enforced by the codec).
type Message struct {
	ID         uint16
	Flags      Flags
	Question   Question
	Answer     []ResourceRecord
	Authority  []ResourceRecord
	Additional []ResourceRecord
}

// NewQueryMessage builds the minimal outbound query message for (name, type,
// class) with RD taken from recursionDesired, as issued by the recursive
// resolver or by a client.
func NewQueryMessage(id uint16, name string, t RRType, c RRClass, recursionDesired bool) (Message, error) {
	q, err := NewQuestion(id, name, t, c)
	if err != nil {
		return Message{}, err
	}
	return Message{
		ID:       id,
		Flags:    Flags{RD: recursionDesired},
		Question: q,
	}, nil
}

// NewErrorResponse builds a response message carrying only an RCode, no
// sections, echoing the ID and RD bit of the originating query.
func NewErrorResponse(query Message, rcode RCode) Message {
	return Message{
		ID: query.ID,
		Flags: Flags{
			QR:    true,
			RD:    query.Flags.RD,
			RCode: rcode,
		},
		Question: query.Question,
	}
}

// Validate checks structural invariants across all sections.
func (m Message) Validate() error {
	if !m.Flags.RCode.IsValid() {
		return fmt.Errorf("invalid rcode: %d", m.Flags.RCode)
	}
	for i, rr := range m.Answer {
		if err := rr.Validate(); err != nil {
			return fmt.Errorf("answer[%d]: %w", i, err)
		}
	}
	for i, rr := range m.Authority {
		if err := rr.Validate(); err != nil {
			return fmt.Errorf("authority[%d]: %w", i, err)
		}
	}
	for i, rr := range m.Additional {
		if err := rr.Validate(); err != nil {
			return fmt.Errorf("additional[%d]: %w", i, err)
		}
	}
	return nil
}

func (m Message) IsError() bool { return m.Flags.RCode != RCodeNoError }
