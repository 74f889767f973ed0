package endpoint

import (
	"context"
	"log/slog"
	"math/rand"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/zeroconf/v2"
	ma "github.com/multiformats/go-multiaddr"
)

// mdnsServiceName is the DNS-SD service type used for LAN discovery.
const mdnsServiceName = "_syncmesh._udp"

const (
	mdnsConnectTimeout        = 5 * time.Second
	mdnsDedupeInterval        = 30 * time.Second
	mdnsMaxConcurrentConnects = 5
	mdnsBrowseInterval        = 30 * time.Second
	mdnsBrowseTimeout         = 10 * time.Second
	dnsaddrPrefix             = "dnsaddr="
)

// mdnsDiscovery advertises this node and browses for peers on the local
// network via zeroconf (mDNS/DNS-SD), feeding discovered addresses into
// the host's peerstore and attempting a direct connect, deduped and
// concurrency-limited so a busy LAN doesn't spawn hundreds of dials.
type mdnsDiscovery struct {
	host   host.Host
	server *zeroconf.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	lastTry map[peer.ID]time.Time

	sem chan struct{}
}

func newMDNSDiscovery(h host.Host) *mdnsDiscovery {
	return &mdnsDiscovery{
		host:    h,
		lastTry: make(map[peer.ID]time.Time),
		sem:     make(chan struct{}, mdnsMaxConcurrentConnects),
	}
}

// Start registers the local service and begins the periodic browse loop.
func (md *mdnsDiscovery) Start(ctx context.Context) error {
	md.ctx, md.cancel = context.WithCancel(ctx)

	if err := md.startServer(); err != nil {
		return err
	}

	md.wg.Add(1)
	go md.browseLoop()
	return nil
}

// Close stops advertising and browsing, and waits for in-flight
// connection attempts to finish.
func (md *mdnsDiscovery) Close() error {
	md.cancel()
	if md.server != nil {
		md.server.Shutdown()
	}
	md.wg.Wait()
	return nil
}

func (md *mdnsDiscovery) startServer() error {
	interfaceAddrs, err := md.host.Network().InterfaceListenAddresses()
	if err != nil {
		return err
	}

	p2pAddrs, err := peer.AddrInfoToP2pAddrs(&peer.AddrInfo{
		ID:    md.host.ID(),
		Addrs: interfaceAddrs,
	})
	if err != nil {
		return err
	}

	var txts []string
	for _, addr := range p2pAddrs {
		if isSuitableForMDNS(addr) {
			txts = append(txts, dnsaddrPrefix+addr.String())
		}
	}
	ips := getIPs(p2pAddrs)

	peerName := randomString(32 + rand.Intn(32))
	server, err := zeroconf.RegisterProxy(
		peerName,
		mdnsServiceName,
		"local",
		4001,
		peerName,
		ips,
		txts,
		nil,
	)
	if err != nil {
		return err
	}
	md.server = server
	return nil
}

func (md *mdnsDiscovery) browseLoop() {
	defer md.wg.Done()

	select {
	case <-time.After(2 * time.Second):
	case <-md.ctx.Done():
		return
	}

	md.runBrowse()

	ticker := time.NewTicker(mdnsBrowseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-md.ctx.Done():
			return
		case <-ticker.C:
			md.runBrowse()
		}
	}
}

// runBrowse runs one bounded zeroconf browse round and processes any
// TXT records that carry a dnsaddr= multiaddr.
func (md *mdnsDiscovery) runBrowse() {
	browseCtx, browseCancel := context.WithTimeout(md.ctx, mdnsBrowseTimeout)
	defer browseCancel()

	entries := make(chan *zeroconf.ServiceEntry, 32)
	if err := zeroconf.Browse(browseCtx, mdnsServiceName, "local.", entries); err != nil {
		if md.ctx.Err() == nil {
			slog.Debug("mdns: browse round error", "error", err)
		}
		return
	}

	for entry := range entries {
		md.processTextRecords(entry.Text)
	}
}

func (md *mdnsDiscovery) processTextRecords(txts []string) {
	addrs := make([]ma.Multiaddr, 0, len(txts))
	for _, txt := range txts {
		if !strings.HasPrefix(txt, dnsaddrPrefix) {
			continue
		}
		addr, err := ma.NewMultiaddr(txt[len(dnsaddrPrefix):])
		if err != nil {
			slog.Debug("mdns: bad multiaddr in TXT", "error", err)
			continue
		}
		addrs = append(addrs, addr)
	}
	if len(addrs) == 0 {
		return
	}

	infos, err := peer.AddrInfosFromP2pAddrs(addrs...)
	if err != nil {
		slog.Debug("mdns: failed to parse peer addrs", "error", err)
		return
	}
	for _, info := range infos {
		if info.ID == md.host.ID() {
			continue
		}
		md.handlePeerFound(info)
	}
}

func (md *mdnsDiscovery) handlePeerFound(pi peer.AddrInfo) {
	short := pi.ID.String()
	if len(short) > 16 {
		short = short[:16] + "..."
	}

	md.mu.Lock()
	if last, ok := md.lastTry[pi.ID]; ok && time.Since(last) < mdnsDedupeInterval {
		md.mu.Unlock()
		return
	}
	md.lastTry[pi.ID] = time.Now()
	md.mu.Unlock()

	lanAddrs := filterLANAddrs(pi.Addrs)
	if len(lanAddrs) > 0 {
		md.host.Peerstore().AddAddrs(pi.ID, lanAddrs, 10*time.Minute)
	} else {
		md.host.Peerstore().AddAddrs(pi.ID, pi.Addrs, 10*time.Minute)
	}

	select {
	case md.sem <- struct{}{}:
	default:
		slog.Debug("mdns: concurrent connect limit reached, skipping", "peer", short)
		return
	}

	md.wg.Add(1)
	go func() {
		defer md.wg.Done()
		defer func() { <-md.sem }()

		ctx, cancel := context.WithTimeout(md.ctx, mdnsConnectTimeout)
		defer cancel()

		if err := md.host.Connect(ctx, pi); err != nil {
			slog.Debug("mdns: connect failed", "peer", short, "error", err)
			return
		}
		slog.Info("mdns: connected to LAN peer", "peer", short)
	}()
}

// isSuitableForMDNS returns true for multiaddrs that should be
// advertised: direct IP addresses or .local DNS names, never relay or
// browser-only transports.
func isSuitableForMDNS(addr ma.Multiaddr) bool {
	if addr == nil {
		return false
	}
	first, _ := ma.SplitFirst(addr)
	if first == nil {
		return false
	}
	switch first.Protocol().Code {
	case ma.P_IP4, ma.P_IP6:
	case ma.P_DNS, ma.P_DNS4, ma.P_DNS6, ma.P_DNSADDR:
		if !strings.HasSuffix(strings.ToLower(first.Value()), ".local") {
			return false
		}
	default:
		return false
	}
	excluded := false
	ma.ForEach(addr, func(c ma.Component) bool {
		switch c.Protocol().Code {
		case ma.P_CIRCUIT, ma.P_WEBTRANSPORT, ma.P_WEBRTC,
			ma.P_WEBRTC_DIRECT, ma.P_P2P_WEBRTC_DIRECT, ma.P_WS, ma.P_WSS:
			excluded = true
			return false
		}
		return true
	})
	return !excluded
}

// getIPs extracts one IPv4 and one IPv6 address for the DNS-SD A/AAAA
// records zeroconf requires, falling back to loopback.
func getIPs(addrs []ma.Multiaddr) []string {
	var ip4, ip6 string
	for _, addr := range addrs {
		first, _ := ma.SplitFirst(addr)
		if first == nil {
			continue
		}
		if ip4 == "" && first.Protocol().Code == ma.P_IP4 {
			ip4 = first.Value()
		} else if ip6 == "" && first.Protocol().Code == ma.P_IP6 {
			ip6 = first.Value()
		}
	}
	var ips []string
	if ip4 != "" {
		ips = append(ips, ip4)
	}
	if ip6 != "" {
		ips = append(ips, ip6)
	}
	if len(ips) == 0 {
		ips = append(ips, "127.0.0.1")
	}
	return ips
}

func randomString(l int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	s := make([]byte, 0, l)
	for i := 0; i < l; i++ {
		s = append(s, alphabet[rand.Intn(len(alphabet))])
	}
	return string(s)
}

// filterLANAddrs keeps only private IPv4 addresses on a subnet shared
// with one of our local interfaces. mDNS means "same LAN", and private
// IPv4 is the one address family reliably usable for a direct dial
// across consumer routers that isolate or renumber IPv6 for clients.
func filterLANAddrs(addrs []ma.Multiaddr) []ma.Multiaddr {
	localNets := localIPv4Subnets()
	if len(localNets) == 0 {
		return nil
	}

	var lan []ma.Multiaddr
	for _, addr := range addrs {
		first, _ := ma.SplitFirst(addr)
		if first == nil || first.Protocol().Code != ma.P_IP4 {
			continue
		}
		ip := net.ParseIP(first.Value())
		if ip == nil || ip.IsLoopback() {
			continue
		}
		for _, ln := range localNets {
			if ln.Contains(ip) {
				lan = append(lan, addr)
				break
			}
		}
	}
	return lan
}

func localIPv4Subnets() []*net.IPNet {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	var nets []*net.IPNet
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipNet.IP.To4()
			if ip4 == nil || ip4.IsLinkLocalUnicast() || ip4.IsLoopback() {
				continue
			}
			nets = append(nets, ipNet)
		}
	}
	return nets
}
