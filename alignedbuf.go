package projfs

// alignedBuffer pairs an engine allocated buffer with its
// release, which must happen exactly once on every path.
//
//	buffer := allocateAlignedBuffer(library, vctx, size)
//	if buffer == nil {
//		return E_OUTOFMEMORY
//	}
//	defer buffer.Release()
type alignedBuffer struct {
	library Library
	data    []byte
}

func allocateAlignedBuffer(
	library Library, vctx VirtualizationContext, size int,
) *alignedBuffer {
	data := library.AllocateAlignedBuffer(vctx, size)
	if data == nil {
		return nil
	}
	return &alignedBuffer{library: library, data: data}
}

func (b *alignedBuffer) Bytes() []byte {
	return b.data
}

func (b *alignedBuffer) Release() {
	if b.data == nil {
		return
	}
	b.library.FreeAlignedBuffer(b.data)
	b.data = nil
}
