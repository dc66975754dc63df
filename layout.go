// SPDX-License-Identifier: MIT

package xisf

// attachment is one Attached data block awaiting a final file position under
// the two-pass fixed-point layout algorithm. setPosition is invoked once per
// layout iteration so the XML header encoded in that iteration always
// carries the candidate position under test.
type attachment struct {
	payload     []byte
	setPosition func(pos uint64)
}

// maxLayoutIterations bounds the fixed-point loop: the XML header's
// length is a monotonically non-decreasing function of decimal digit counts
// in attached-block positions, so in practice it stabilizes in one or two
// passes; five is a generous bound against pathological inputs.
const maxLayoutIterations = 5

// computeLayout runs the monolithic write-side layout algorithm: it assigns
// each attachment a position consistent with the XML header's own encoded
// length, by iterating "emit XML at candidate length X -> measure true
// length -> re-emit at the new length" until the measured length stops
// changing.
//
//	positions[0]   = fileHeaderSize + xmlLen
//	positions[i]   = positions[i-1] + len(attachments[i-1].payload)
//
// It returns the final encoded XML header bytes. Attachments' setPosition
// callbacks have been called with the positions consistent with the
// returned bytes.
func computeLayout(ph *parsedHeader, attachments []attachment, opts EncodeOptions) ([]byte, error) {
	xmlLen := 0

	for iter := 0; iter < maxLayoutIterations; iter++ {
		pos := uint64(fileHeaderSize) + uint64(xmlLen)
		for _, a := range attachments {
			a.setPosition(pos)
			pos += uint64(len(a.payload))
		}

		xmlBytes, err := EncodeXMLHeader(ph, opts)
		if err != nil {
			return nil, err
		}

		if len(xmlBytes) == xmlLen {
			return xmlBytes, nil
		}
		xmlLen = len(xmlBytes)
	}

	return nil, ErrLayoutDidNotConverge
}

// collectAttachments walks a unit's images and core elements, gathering
// every DataBlock whose Location is BlockAttached. prepare is invoked once
// per such block to run the write-side compression/checksum pipeline over
// its RawBytes; it is expected to also set the block's Compression and
// Checksum fields as a side effect, mirroring prepareBlockPayload's result.
// The itemSizeHint argument passed to prepare is the sample item size of
// the block's enclosing image (for pixel data) or thumbnail (for thumbnail
// pixel data), used as a shuffle-codec fallback when the block carries no
// explicit per-block Compression.ItemSize of its own; it is 0 where no such
// sample format applies (ICC profiles).
func collectAttachments(ph *parsedHeader, prepare func(b *DataBlock, itemSizeHint int) ([]byte, error)) ([]attachment, error) {
	var atts []attachment
	var firstErr error

	addIfAttached := func(b *DataBlock, itemSizeHint int) {
		if firstErr != nil || b.Location != BlockAttached {
			return
		}
		payload, err := prepare(b, itemSizeHint)
		if err != nil {
			firstErr = err
			return
		}
		block := b
		atts = append(atts, attachment{
			payload: payload,
			setPosition: func(pos uint64) {
				block.Position = pos
				block.Size = uint64(len(payload))
			},
		})
	}

	for i := range ph.Images {
		img := &ph.Images[i]
		addIfAttached(&img.PixelData, img.SampleFormat.ItemSize())
		for j := range img.AssociatedElements {
			ce := &img.AssociatedElements[j]
			addIfAttached(&ce.IccProfileBlock, 0)
			addIfAttached(&ce.ThumbnailPixelData, ce.ThumbnailSampleFormat.ItemSize())
		}
	}
	for uid := range ph.Header.CoreElements {
		uid := uid
		ce := ph.Header.CoreElements[uid]
		startIdx := len(atts)
		addIfAttached(&ce.IccProfileBlock, 0)
		addIfAttached(&ce.ThumbnailPixelData, ce.ThumbnailSampleFormat.ItemSize())
		// ce is a map value copy: atts[i].setPosition mutates this local, so
		// the map entry must be written back after each position assignment
		// rather than once up front.
		for i := startIdx; i < len(atts); i++ {
			next := atts[i].setPosition
			atts[i].setPosition = func(pos uint64) {
				next(pos)
				ph.Header.CoreElements[uid] = ce
			}
		}
	}
	for i := range ph.Header.Anonymous {
		ce := &ph.Header.Anonymous[i]
		addIfAttached(&ce.IccProfileBlock, 0)
		addIfAttached(&ce.ThumbnailPixelData, ce.ThumbnailSampleFormat.ItemSize())
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return atts, nil
}
