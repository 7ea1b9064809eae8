package vfs

var (
	nodeOpenedHandlers      []func(*Node)
	nodeClosedHandlers      []func(*Node)
	dirStreamOpenedHandlers []func(*DirectoryStream)
	dirStreamClosedHandlers []func(*DirectoryStream)
)

// OnNodeOpened subscribes to the NODE_OPENED event.
func OnNodeOpened(fn func(*Node)) { nodeOpenedHandlers = append(nodeOpenedHandlers, fn) }

// OnNodeClosed subscribes to the NODE_CLOSED event.
func OnNodeClosed(fn func(*Node)) { nodeClosedHandlers = append(nodeClosedHandlers, fn) }

// OnDirectoryStreamOpened subscribes to the DIRECTORY_STREAM_OPENED event.
func OnDirectoryStreamOpened(fn func(*DirectoryStream)) {
	dirStreamOpenedHandlers = append(dirStreamOpenedHandlers, fn)
}

// OnDirectoryStreamClosed subscribes to the DIRECTORY_STREAM_CLOSED event.
func OnDirectoryStreamClosed(fn func(*DirectoryStream)) {
	dirStreamClosedHandlers = append(dirStreamClosedHandlers, fn)
}

func fireNodeOpened(n *Node) {
	for _, h := range nodeOpenedHandlers {
		h(n)
	}
}

func fireNodeClosed(n *Node) {
	for _, h := range nodeClosedHandlers {
		h(n)
	}
}

func fireDirStreamOpened(ds *DirectoryStream) {
	for _, h := range dirStreamOpenedHandlers {
		h(ds)
	}
}

func fireDirStreamClosed(ds *DirectoryStream) {
	for _, h := range dirStreamClosedHandlers {
		h(ds)
	}
}
