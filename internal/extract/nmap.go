package extract

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// nmapRecognizer reads nmap XML output (-oX). Hosts and open ports feed
// the canonical ip/port/service leaves; per-port rows with product detail
// ride in Extra under "open_tcp" and "open_udp".
type nmapRecognizer struct{}

type nmapRun struct {
	Hosts []nmapHost `xml:"host"`
}

type nmapHost struct {
	Address nmapAddress `xml:"address"`
	Ports   []nmapPort  `xml:"ports>port"`
}

type nmapAddress struct {
	Addr string `xml:"addr,attr"`
}

type nmapPort struct {
	Protocol string      `xml:"protocol,attr"`
	PortID   int         `xml:"portid,attr"`
	State    nmapState   `xml:"state"`
	Service  nmapService `xml:"service"`
}

type nmapState struct {
	State string `xml:"state,attr"`
}

type nmapService struct {
	Name    string `xml:"name,attr"`
	Product string `xml:"product,attr"`
}

func (nmapRecognizer) Name() string { return "nmap-xml" }

func (nmapRecognizer) Sniff(path, text string) bool {
	return strings.Contains(text, "<nmaprun")
}

func (nmapRecognizer) Parse(path, text string) FactSet {
	fs := NewFactSet()
	var run nmapRun
	if err := xml.Unmarshal([]byte(text), &run); err != nil {
		fs.Indicators = append(fs.Indicators, fmt.Sprintf("extract_error:%s:%v", path, err))
		return fs
	}

	var ips []string
	var ports []int
	var services []string
	var openTCP, openUDP []any
	for _, h := range run.Hosts {
		if h.Address.Addr != "" {
			ips = append(ips, h.Address.Addr)
		}
		for _, p := range h.Ports {
			if p.State.State != "open" {
				continue
			}
			ports = append(ports, p.PortID)
			if p.Service.Name != "" {
				services = append(services, strings.ToLower(p.Service.Name))
			}
			rec := map[string]any{
				"host":    h.Address.Addr,
				"port":    p.PortID,
				"service": p.Service.Name,
				"product": p.Service.Product,
			}
			if p.Protocol == "tcp" {
				openTCP = append(openTCP, rec)
			} else {
				openUDP = append(openUDP, rec)
			}
		}
	}

	fs.Entities.IPs = sortedUnique(ips)
	fs.Artifacts.Ports = sortedUniqueInts(ports)
	fs.Artifacts.Services = sortedUnique(services)
	if len(openTCP) > 0 || len(openUDP) > 0 {
		fs.Extra = map[string]any{}
		if len(openTCP) > 0 {
			fs.Extra["open_tcp"] = openTCP
		}
		if len(openUDP) > 0 {
			fs.Extra["open_udp"] = openUDP
		}
	}
	return fs
}
