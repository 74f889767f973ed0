package blobstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peerstore"
	"github.com/libp2p/go-libp2p/core/protocol"
)

// ProtocolID is the libp2p stream protocol used for blob transfer: a
// 32-byte hash request, answered with a varint-length-prefixed byte
// response, then the stream closes.
const ProtocolID = protocol.ID("/meshsync/blob/1.0.0")

// Transport serves blobs to peers over libp2p streams and fetches
// blobs named by a ticket from their owning peer.
type Transport struct {
	host  host.Host
	store *Store
}

// NewTransport registers the blob transfer stream handler on h and
// returns a Transport serving blobs out of store.
func NewTransport(h host.Host, store *Store) *Transport {
	t := &Transport{host: h, store: store}
	h.SetStreamHandler(ProtocolID, t.handleStream)
	return t
}

func (t *Transport) handleStream(s network.Stream) {
	defer s.Close()

	var reqBuf [HashSize]byte
	if _, err := io.ReadFull(s, reqBuf[:]); err != nil {
		s.Reset()
		return
	}
	h, err := ContentHashFromBytes(reqBuf[:])
	if err != nil {
		s.Reset()
		return
	}

	r, err := t.store.ReadStream(h)
	if err != nil {
		s.Reset()
		return
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		s.Reset()
		return
	}

	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(data)))
	if _, err := s.Write(lenBuf[:n]); err != nil {
		s.Reset()
		return
	}
	if _, err := s.Write(data); err != nil {
		s.Reset()
		return
	}
}

// Download fetches the blob named by ticket from its owning peer,
// importing it into the local store and writing it to dest. If the
// hash is already present locally, no dial is made.
func (t *Transport) Download(ctx context.Context, ticket Ticket, dest string) error {
	if t.store.Has(ticket.Hash) {
		return t.store.Export(ticket.Hash, dest)
	}

	info, err := ticket.Node.AddrInfo()
	if err != nil {
		return &TicketError{Op: "resolve node address", Err: err}
	}
	t.host.Peerstore().AddAddrs(info.ID, info.Addrs, peerstore.TempAddrTTL)

	s, err := t.host.NewStream(ctx, info.ID, ProtocolID)
	if err != nil {
		return &TransportError{Op: "open stream", Err: err}
	}
	defer s.Close()

	var reqBuf [HashSize]byte
	copy(reqBuf[:], ticket.Hash[:])
	if _, err := s.Write(reqBuf[:]); err != nil {
		return &TransportError{Op: "send hash request", Err: err}
	}
	if err := s.CloseWrite(); err != nil {
		return &TransportError{Op: "close write side", Err: err}
	}

	br := newByteReader(s)
	length, err := binary.ReadUvarint(br)
	if err != nil {
		return &TransportError{Op: "read response length", Err: err}
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(s, data); err != nil {
		return &TransportError{Op: "read response body", Err: err}
	}

	got, err := t.store.Import(data)
	if err != nil {
		return err
	}
	if got != ticket.Hash {
		return &TransportError{Op: "verify downloaded blob", Err: fmt.Errorf("hash mismatch: want %s, got %s", ticket.Hash, got)}
	}

	return t.store.Export(ticket.Hash, dest)
}

// byteReader adapts an io.Reader to io.ByteReader for binary.ReadUvarint.
type byteReader struct {
	r   io.Reader
	buf [1]byte
}

func newByteReader(r io.Reader) *byteReader { return &byteReader{r: r} }

func (b *byteReader) ReadByte() (byte, error) {
	if _, err := io.ReadFull(b.r, b.buf[:]); err != nil {
		return 0, err
	}
	return b.buf[0], nil
}
