package rrdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quilldns/rr-dns/internal/dns/domain"
)

const origin = "example.com."

func TestParseA(t *testing.T) {
	rd, err := Parse(domain.RRTypeA, origin, []string{"192.0.2.1"})
	require.NoError(t, err)
	a, ok := rd.(domain.AData)
	require.True(t, ok)
	assert.Equal(t, "192.0.2.1", a.Addr.String())
}

func TestParseARejectsIPv6(t *testing.T) {
	_, err := Parse(domain.RRTypeA, origin, []string{"::1"})
	require.Error(t, err)
}

func TestParseNSQualifiesRelativeName(t *testing.T) {
	rd, err := Parse(domain.RRTypeNS, origin, []string{"ns1"})
	require.NoError(t, err)
	ns := rd.(domain.NSData)
	assert.Equal(t, "ns1.example.com.", ns.NSDName)
}

func TestParseCNAMEAbsoluteNamePassesThrough(t *testing.T) {
	rd, err := Parse(domain.RRTypeCNAME, origin, []string{"target.other.com."})
	require.NoError(t, err)
	c := rd.(domain.CNAMEData)
	assert.Equal(t, "target.other.com.", c.Target)
}

func TestParseSOA(t *testing.T) {
	rd, err := Parse(domain.RRTypeSOA, origin, []string{"ns1", "hostmaster", "1", "2", "3", "4", "5"})
	require.NoError(t, err)
	soa := rd.(domain.SOAData)
	assert.Equal(t, "ns1.example.com.", soa.MName)
	assert.Equal(t, "hostmaster.example.com.", soa.RName)
	assert.Equal(t, uint32(1), soa.Serial)
	assert.Equal(t, uint32(5), soa.Minimum)
}

func TestParseSOABadFieldCount(t *testing.T) {
	_, err := Parse(domain.RRTypeSOA, origin, []string{"ns1", "hostmaster"})
	require.Error(t, err)
}

func TestParseMX(t *testing.T) {
	rd, err := Parse(domain.RRTypeMX, origin, []string{"10", "mail"})
	require.NoError(t, err)
	mx := rd.(domain.MXData)
	assert.Equal(t, uint16(10), mx.Preference)
	assert.Equal(t, "mail.example.com.", mx.Exchange)
}

func TestParseTXTStripsQuotes(t *testing.T) {
	rd, err := Parse(domain.RRTypeTXT, origin, []string{`"hello world"`, `"second"`})
	require.NoError(t, err)
	txt := rd.(domain.TXTData)
	assert.Equal(t, []string{"hello world", "second"}, txt.Strings)
}

func TestParseHINFO(t *testing.T) {
	rd, err := Parse(domain.RRTypeHINFO, origin, []string{`"Intel"`, `"Linux"`})
	require.NoError(t, err)
	hi := rd.(domain.HINFOData)
	assert.Equal(t, "Intel", hi.CPU)
	assert.Equal(t, "Linux", hi.OS)
}

func TestParsePTR(t *testing.T) {
	rd, err := Parse(domain.RRTypePTR, origin, []string{"host1"})
	require.NoError(t, err)
	ptr := rd.(domain.PTRData)
	assert.Equal(t, "host1.example.com.", ptr.Target)
}

func TestParseUnsupportedType(t *testing.T) {
	_, err := Parse(domain.RRType(9999), origin, []string{"x"})
	require.Error(t, err)
}

func TestQualifyNameAtSign(t *testing.T) {
	assert.Equal(t, "example.com.", QualifyName("@", origin))
}
