// Package graph renders the shape of a container as a Mermaid flowchart.
package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/tessera/pkg/segment"
)

// Topology is what a container exposes about its composition.
type Topology struct {
	// Namespaces holds the state slices in composition order.
	Namespaces []string
	// Methods lists the action methods per namespace ("" for root methods).
	Methods map[string][]string
	Segments []segment.Info
}

// GenerateMermaid produces a Mermaid flowchart of t:
// - Store: ((Circle))
// - Namespace: [Rectangle], labelled with its methods
// - Segment: [[Subroutine]], styled by status
func GenerateMermaid(t Topology) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	sb.WriteString("    store((\"store\"))\n")

	if root := t.Methods[""]; len(root) > 0 {
		sb.WriteString(fmt.Sprintf("    store --- root_methods[/\"%s\"/]\n", strings.Join(root, ", ")))
	}

	for _, ns := range t.Namespaces {
		safeID := "ns_" + sanitizeMermaidID(ns)
		label := ns
		if methods := t.Methods[ns]; len(methods) > 0 {
			label = fmt.Sprintf("%s <br/> %s", ns, strings.Join(methods, ", "))
		}
		sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", safeID, escape(label)))
		sb.WriteString(fmt.Sprintf("    store --> %s\n", safeID))
	}

	if len(t.Segments) == 0 {
		return sb.String()
	}

	for _, info := range t.Segments {
		safeID := "seg_" + sanitizeMermaidID(info.ID)
		sb.WriteString(fmt.Sprintf("    %s[[\"%s\"]]\n", safeID, escape(info.ID)))
		sb.WriteString(fmt.Sprintf("    %s -. %s .-> store\n", safeID, info.Status))
	}

	// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
	sb.WriteString("\n    %% Segment Styles\n")
	sb.WriteString("    classDef loaded fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
	sb.WriteString("    classDef loading fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
	sb.WriteString("    classDef unloaded fill:#eeeeee,stroke:#9e9e9e,stroke-dasharray:4,color:#000;\n")
	for _, info := range t.Segments {
		if info.Status == segment.StatusUnregistered {
			continue
		}
		sb.WriteString(fmt.Sprintf("    class seg_%s %s;\n", sanitizeMermaidID(info.ID), info.Status))
	}

	return sb.String()
}

func escape(label string) string {
	return strings.ReplaceAll(label, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
