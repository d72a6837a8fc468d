package compliance

import "slatrack/internal/domain"

// TreeNode is the display structure for one SLA node: the node itself, its
// report item when one was produced, and its children.
type TreeNode struct {
	SLA      domain.ServiceLevelAgreement `json:"sla"`
	Item     *domain.ComplianceReportItem `json:"item,omitempty"`
	Children []*TreeNode                  `json:"children,omitempty"`
}

// BuildTree assembles the SLA hierarchy for presentation, attaching each
// node's report item by SLA id. Children are discovered through a
// parent->children index built once per call; a visited set bounds the
// recursion so a corrupted parent chain cannot loop.
func BuildTree(slas []domain.ServiceLevelAgreement, items []domain.ComplianceReportItem) []*TreeNode {
	children := make(map[string][]domain.ServiceLevelAgreement)
	var roots []domain.ServiceLevelAgreement
	for _, sla := range slas {
		if sla.ParentID == nil {
			roots = append(roots, sla)
			continue
		}
		children[*sla.ParentID] = append(children[*sla.ParentID], sla)
	}
	itemsBySLA := make(map[string]domain.ComplianceReportItem, len(items))
	for _, item := range items {
		itemsBySLA[item.SLAID] = item
	}
	visited := make(map[string]bool, len(slas))
	var nodes []*TreeNode
	for _, root := range roots {
		if n := buildNode(root, children, itemsBySLA, visited); n != nil {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

func buildNode(sla domain.ServiceLevelAgreement, children map[string][]domain.ServiceLevelAgreement, items map[string]domain.ComplianceReportItem, visited map[string]bool) *TreeNode {
	if visited[sla.ID] {
		return nil
	}
	visited[sla.ID] = true
	node := &TreeNode{SLA: sla}
	if item, ok := items[sla.ID]; ok {
		node.Item = &item
	}
	for _, child := range children[sla.ID] {
		if n := buildNode(child, children, items, visited); n != nil {
			node.Children = append(node.Children, n)
		}
	}
	return node
}
