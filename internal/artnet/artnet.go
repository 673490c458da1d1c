// Package artnet is the lighting output driver: it sends the universe as
// Art-Net (DMX over UDP/IP) and reports the nodes seen on the network.
package artnet

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Haba1234/go-artnet"

	"lightdesk/internal/apperr"
	"lightdesk/internal/config"
	"lightdesk/internal/logger"
)

// ArtNet is transport for the ArtNet protocol (DMX over UDP/IP).
type ArtNet struct {
	logger      logger.Logger
	sender      *artnet.Controller
	address     artnet.Address
	scan        time.Duration
	onNodes     func([]Node)
	state       *State
	sendTrigger chan Universe
	ctx         context.Context
}

// NewController returns an art-net output for the universe in cfg. onNodes,
// if not nil, receives the node list after every scan.
func NewController(log logger.Logger, cfg config.ArtNetConf, onNodes func([]Node)) (*ArtNet, error) {
	ip, err := FindArtNetIP(cfg.CIDR)
	if err != nil {
		return nil, fmt.Errorf("failed to find the art-net IP: %w", err)
	}

	if len(ip) == 0 {
		return nil, errors.New("failed to find the art-net IP: No interface found")
	}

	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve hostname: %w", err)
	}

	host = strings.ToLower(strings.Split(host, ".")[0])
	log.With(logger.Fields{"module": "art-net"}).Infof("Using ArtNet IP %s and hostname %s", ip.String(), host)

	senderLogger := artnet.NewDefaultLogger(log.GetLevel())

	fps := cfg.FPS
	if fps <= 0 {
		fps = 40
	}
	scan := time.Duration(cfg.ScanInterval) * time.Second
	if scan <= 0 {
		scan = 30 * time.Second
	}

	control := &ArtNet{
		logger:      log,
		sender:      artnet.NewController(host, ip, senderLogger, artnet.MaxFPS(fps)),
		address:     universeToAddress(cfg.Universe),
		scan:        scan,
		onNodes:     onNodes,
		state:       NewState(),
		sendTrigger: make(chan Universe, 100),
	}

	return control, nil
}

// Start the ArtNet.
func (c *ArtNet) Start(ctx context.Context) error {
	if err := c.sender.Start(); err != nil {
		return fmt.Errorf("failed to start Controller: %w", err)
	}

	c.ctx = ctx
	go c.sendBackground()
	go c.debugDevices()
	return nil
}

// Stop the ArtNet.
func (c *ArtNet) Stop() {
	c.sender.Stop()
}

// Update sends the changed channels (1..512) with the rest of the frame.
func (c *ArtNet) Update(values map[int]uint8) error {
	return c.triggerSend(c.state.SetChannels(values))
}

// Blackout sends an all-zero frame.
func (c *ArtNet) Blackout() error {
	return c.triggerSend(c.state.Reset())
}

func (c *ArtNet) triggerSend(frame Universe) error {
	select {
	case c.sendTrigger <- frame:
		return nil
	default:
		return fmt.Errorf("art-net send queue full: %w", apperr.ErrDegraded)
	}
}

func (c *ArtNet) sendBackground() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case dmx := <-c.sendTrigger:
			// dmx - массив данных 512 байт.
			c.sender.SendDMXToAddress(dmx.toByteSlice(), c.address)
		}
	}
}

// universeToAddress converts a dmx universe to art-net address
// universe: старший байт - Net, младший байт - SubUni.
func universeToAddress(universe uint16) artnet.Address {
	v := make([]uint8, 2)
	binary.BigEndian.PutUint16(v, universe)

	return artnet.Address{
		Net:    v[0],
		SubUni: v[1],
	}
}

// NodeToString returns a string representation of the given Node.
func NodeToString(n *artnet.ControlledNode) (string, Node) {
	var inputs, outputs []string
	var out []uint16
	for _, p := range n.Node.InputPorts {
		inputs = append(inputs, fmt.Sprintf("%s: %s", p.Address.String(), p.Type.String()))
	}

	for _, p := range n.Node.OutputPorts {
		outputs = append(outputs, fmt.Sprintf("%s: %s", p.Address.String(), p.Type.String()))
		out = append(out, uint16(p.Address.Integer()))
	}

	return fmt.Sprintf(
			" | IP=%s name=%q type=%q manufacturer=%q desc=%q inputs=%q outputs=%q",
			n.UDPAddress.String(), n.Node.Name, n.Node.Type,
			n.Node.Manufacturer, n.Node.Description,
			strings.Join(inputs, "; "), strings.Join(outputs, "; "),
		), Node{
			Name:      n.Node.Name,
			IP:        n.UDPAddress.IP.String(),
			Type:      fmt.Sprint(n.Node.Type),
			Outputs:   outputs,
			Universes: out,
		}
}

func describe(nodes []*artnet.ControlledNode) ([]string, []Node) {
	lines := make([]string, 0, len(nodes))
	list := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		line, node := NodeToString(n)
		lines = append(lines, line)
		list = append(list, node)
	}
	return lines, list
}

func (c *ArtNet) debugDevices() {
	t := time.NewTicker(c.scan)
	defer t.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-t.C:
			lines, nodes := describe(c.sender.Nodes)
			c.logger.With(logger.Fields{"module": "art-net"}).Debugf("Currently %d devices are registered: %v\n", len(nodes), lines)
			if c.onNodes != nil {
				c.onNodes(nodes)
			}
		}
	}
}
