package bjpeg

import "github.com/pkg/errors"

// hcNode is a node of the canonical-Huffman binary decode tree: left/right
// children plus a parent back-pointer used only during construction.
type hcNode struct {
	left, right *hcNode
	parent      *hcNode
	symbol      uint8
	leaf        bool
}

// huffTable is one DC or AC Huffman decode table: the binary tree plus the
// class it was declared with.
type huffTable struct {
	root  *hcNode
	class uint8 // 0 = DC, 1 = AC
}

// buildHuffmanTree performs the canonical code assignment of T.81 Annex C:
// codes are assigned in lexicographic (length, index) order starting from
// 0, shifting left by one bit between lengths. counts[i] is the number of
// codes of length i+1; symbols holds all symbols concatenated in code
// order. A code equal to (1<<length)-1 is never assignable: the all-ones
// prefix is reserved, so demanding one makes the table malformed.
func buildHuffmanTree(counts [16]uint8, symbols []uint8) (*hcNode, error) {
	root := &hcNode{}
	last := root
	var level uint
	var code uint32
	var prevLen uint
	si := 0

	for i := uint(0); i < 16; i++ {
		codeLen := i + 1
		for c := uint8(0); c < counts[i]; c++ {
			if si >= len(symbols) {
				return nil, errors.Wrap(ErrIncompleteHuffmanTable, "fewer symbol bytes than code counts demand")
			}
			code <<= codeLen - prevLen
			prevLen = codeLen
			if code == 1<<codeLen-1 {
				return nil, errors.Wrapf(ErrInvalidHuffmanTable, "all-ones code of length %d", codeLen)
			}
			for level < codeLen {
				switch {
				case last.right == nil:
					last.right = &hcNode{parent: last}
					last = last.right
					level++
				case last.left == nil:
					last.left = &hcNode{parent: last}
					last = last.left
					level++
				default:
					if level == 0 {
						return nil, errors.Wrapf(ErrInvalidHuffmanTable, "too many codes of length %d", codeLen)
					}
					last = last.parent
					level--
				}
			}
			if last.left != nil || last.right != nil {
				return nil, errors.Wrapf(ErrInvalidHuffmanTable, "code of length %d collides with an internal node", codeLen)
			}
			last.symbol = symbols[si]
			last.leaf = true
			si++
			code++
			last = last.parent
			level--
		}
	}
	return root, nil
}

// parseDHT parses a (possibly multi-table) DHT payload, installing each
// built table into the 2-DC/2-AC slot named by (class, destination).
// Baseline allows destinations 0 and 1 only; the high bits of the nibble
// are reserved for the extended and progressive profiles.
func parseDHT(payload []byte, dc, ac *[2]*huffTable) error {
	off := 0
	for off < len(payload) {
		if off+17 > len(payload) {
			return errors.Wrap(ErrIncompleteHuffmanTable, "DHT: truncated sub-table header")
		}
		classDest := payload[off]
		off++
		class := classDest >> 4
		dest := classDest & 0x0f
		if class > 1 {
			return errors.Wrapf(ErrInvalidHuffmanTable, "DHT: class %d not in {0,1}", class)
		}
		if dest > 1 {
			return errors.Wrapf(ErrInvalidHuffmanTable, "DHT: destination %d out of range [0,1]", dest)
		}

		var counts [16]uint8
		total := 0
		for i := 0; i < 16; i++ {
			counts[i] = payload[off+i]
			total += int(counts[i])
		}
		off += 16

		if off+total > len(payload) {
			return errors.Wrap(ErrIncompleteHuffmanTable, "DHT: fewer symbol bytes than declared")
		}
		symbols := payload[off : off+total]
		off += total

		root, err := buildHuffmanTree(counts, symbols)
		if err != nil {
			return err
		}
		table := &huffTable{root: root, class: class}
		if class == 0 {
			dc[dest] = table
		} else {
			ac[dest] = table
		}
	}
	return nil
}
