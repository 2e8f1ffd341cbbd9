package interfaces

// ContainerHandle identifies a visual container created on a surface.
type ContainerHandle struct {
	ID     string
	Parent string
}

// -----------------------------------------------------------------------------
// ISurface is the document the client core draws its controls and charts into.
// -----------------------------------------------------------------------------

type ISurface interface {

	// CreateControl creates a trigger element whose identity is id.
	// onActivate runs each time the element is activated.
	CreateControl(id string, onActivate func()) error

	// -----------------------------------------------------------------------------

	// AppendContainer creates a container named id under parent.
	AppendContainer(parent, id string) (ContainerHandle, error)

	// -----------------------------------------------------------------------------

	// RemoveContainer detaches a container created by AppendContainer.
	RemoveContainer(id string) error
}
