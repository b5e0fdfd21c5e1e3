package domain

import (
	"fmt"
	"net"
	"strings"
)

// RData is the typed payload of a resource record. Each supported RRType
// has exactly one concrete implementation below; String renders the
// master-file presentation form used both when parsing zone files and when
// printing records for logs and traces.
type RData interface {
	Type() RRType
	String() string
}

// OpaqueData preserves the raw RDATA bytes for a record type this
// implementation doesn't parse structurally. It is only ever produced by
// the resolver path when caching/forwarding upstream answers verbatim
// (§4.2); the authoritative loader treats an unknown type as a fatal parse
// error instead of falling back to this.
type OpaqueData struct {
	RRType RRType
	Raw    []byte
}

func (d OpaqueData) Type() RRType { return d.RRType }
func (d OpaqueData) String() string { return fmt.Sprintf("\\# %d %x", len(d.Raw), d.Raw) }

// AData is an A record: a 4-octet IPv4 address.
type AData struct {
	Addr net.IP
}

func (d AData) Type() RRType { return RRTypeA }
func (d AData) String() string { return d.Addr.String() }

// NSData names a nameserver authoritative for the owner.
type NSData struct {
	NSDName string // canonical, absolute
}

func (d NSData) Type() RRType { return RRTypeNS }
func (d NSData) String() string { return d.NSDName }

// CNAMEData is a canonical-name alias.
type CNAMEData struct {
	Target string // canonical, absolute
}

func (d CNAMEData) Type() RRType { return RRTypeCNAME }
func (d CNAMEData) String() string { return d.Target }

// SOAData is the start-of-authority record.
type SOAData struct {
	MName   string // canonical, absolute
	RName   string // canonical, absolute ('.' separated mailbox form)
	Serial  uint32
	Refresh uint32
	Retry   uint32
	Expire  uint32
	Minimum uint32
}

func (d SOAData) Type() RRType { return RRTypeSOA }
func (d SOAData) String() string {
	return fmt.Sprintf("%s %s %d %d %d %d %d", d.MName, d.RName, d.Serial, d.Refresh, d.Retry, d.Expire, d.Minimum)
}

// PTRData is a pointer to a domain name, typically used for reverse lookups.
type PTRData struct {
	Target string // canonical, absolute
}

func (d PTRData) Type() RRType { return RRTypePTR }
func (d PTRData) String() string { return d.Target }

// MXData is a mail-exchange preference/target pair.
type MXData struct {
	Preference uint16
	Exchange   string // canonical, absolute
}

func (d MXData) Type() RRType { return RRTypeMX }
func (d MXData) String() string { return fmt.Sprintf("%d %s", d.Preference, d.Exchange) }

// TXTData is an ordered sequence of character-strings.
type TXTData struct {
	Strings []string
}

func (d TXTData) Type() RRType { return RRTypeTXT }
func (d TXTData) String() string {
	quoted := make([]string, len(d.Strings))
	for i, s := range d.Strings {
		quoted[i] = `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return strings.Join(quoted, " ")
}

// HINFOData describes host CPU and OS as character-strings.
type HINFOData struct {
	CPU string
	OS  string
}

func (d HINFOData) Type() RRType { return RRTypeHINFO }
func (d HINFOData) String() string { return fmt.Sprintf("%q %q", d.CPU, d.OS) }
