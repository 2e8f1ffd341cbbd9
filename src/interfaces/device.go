package interfaces

// -----------------------------------------------------------------------------
// IDevice is the sensor the backend captures from, addressed by RPC name.
// -----------------------------------------------------------------------------

type IDevice interface {
	RPC(name string, arg []byte) ([]byte, error)
}
