package transport

// DialPipe connects to a language server on a named pipe. On Unix this is a
// Unix domain socket; the name is the socket path.
func DialPipe(name string) (Transport, error) {
	return DialSocket(name)
}
