package transport

import "net"

type tcpTransport struct {
	conn net.Conn
}

// TCP creates a transport from an established TCP connection.
func TCP(conn net.Conn) Transport {
	return &tcpTransport{conn: conn}
}

func (t *tcpTransport) Read(p []byte) (int, error)  { return t.conn.Read(p) }
func (t *tcpTransport) Write(p []byte) (int, error) { return t.conn.Write(p) }
func (t *tcpTransport) Close() error                { return t.conn.Close() }

// DialTCP connects to a language server listening on a TCP address
// (e.g. "localhost:9257").
func DialTCP(addr string) (Transport, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return TCP(conn), nil
}
