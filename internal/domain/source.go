package domain

// Source labels the external program a transaction is associated with.
// It segments the high-volume board by venue; one transaction can carry
// several source tags at once.
type Source string

// Well-known venue tags.
const (
	SourceRaydium Source = "raydium"
	SourcePumpFun Source = "pumpfun"
)

// String returns the string representation of Source.
func (s Source) String() string {
	return string(s)
}
