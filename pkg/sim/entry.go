package sim

import (
	"strings"
	"unsafe"

	"github.com/mkfoss/nwrfc/pkg/rfcapi"
)

// Entry points. Each one counts itself, takes the system lock and reports
// failures through the error info the caller passed in.

func (s *System) enter() func() {
	s.calls.Add(1)
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *System) getVersion(major, minor, patch *uint32) *uint16 {
	defer s.enter()()
	*major, *minor, *patch = 7500, 0, 14
	return &s.version[0]
}

func (s *System) openConnection(params *rfcapi.ConnectionParameter, count uint32, ei *rfcapi.ErrorInfo) rfcapi.Handle {
	defer s.enter()()
	p := map[string]string{}
	if count > 0 {
		for _, cp := range unsafe.Slice(params, count) {
			p[strings.ToLower(rfcapi.StringZ(cp.Name))] = rfcapi.StringZ(cp.Value)
		}
	}

	host := p["ashost"]
	if host == "" {
		host = p["mshost"]
	}
	if host == "" {
		report(ei, failf(rfcapi.RCInvalidParameter, "RFC_INVALID_PARAMETER", "Parameter ASHOST, GWHOST, MSHOST or PORT is missing."))
		return 0
	}
	if s.unreachable[strings.ToLower(host)] {
		report(ei, failf(rfcapi.RCCommunicationFailure, "RFC_COMMUNICATION_FAILURE",
			"partner '%s:sapgw%s' not reached", host, p["sysnr"]))
		return 0
	}
	client := p["client"]
	if len(client) != 3 || !digits(client) {
		report(ei, failf(rfcapi.RCInvalidParameter, "RFC_INVALID_PARAMETER", "Invalid client %q", client))
		return 0
	}
	user := strings.ToUpper(p["user"])
	if want, ok := s.users[userKey(client, user)]; !ok || want != p["passwd"] {
		report(ei, failf(rfcapi.RCLogonFailure, "RFC_LOGON_FAILURE", "Name or password is incorrect (repeat logon)"))
		return 0
	}
	lang := strings.ToUpper(p["lang"])
	if lang == "" {
		lang = "E"
	}

	h := s.alloc(&conn{host: host, client: client, user: user, lang: lang})
	s.open[KindConnection]++
	report(ei, nil)
	return h
}

func (s *System) connOf(h rfcapi.Handle) (*conn, *fault) {
	c, ok := s.objects[h].(*conn)
	if !ok {
		return nil, invalidHandle("connection", h)
	}
	return c, nil
}

// dropConnection frees a connection the system itself has closed.
func (s *System) dropConnection(h rfcapi.Handle) {
	if _, ok := s.objects[h].(*conn); ok {
		delete(s.objects, h)
		s.open[KindConnection]--
	}
}

// broken fails a call on a disrupted connection and closes it.
func (s *System) broken(h rfcapi.Handle, c *conn) *fault {
	if !c.broken {
		return nil
	}
	s.dropConnection(h)
	return failf(rfcapi.RCCommunicationFailure, "RFC_COMMUNICATION_FAILURE", "connection to partner '%s' broken", c.host)
}

func (s *System) closeConnection(h rfcapi.Handle, ei *rfcapi.ErrorInfo) rfcapi.RC {
	s.calls.Add(1)
	done := s.track(h)
	defer done()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, f := s.connOf(h); f != nil {
		return report(ei, f)
	}
	s.dropConnection(h)
	return report(ei, s.destroyFault(KindConnection))
}

func (s *System) ping(h rfcapi.Handle, ei *rfcapi.ErrorInfo) rfcapi.RC {
	s.calls.Add(1)
	done := s.track(h)
	defer done()
	s.mu.Lock()
	defer s.mu.Unlock()
	c, f := s.connOf(h)
	if f != nil {
		return report(ei, f)
	}
	return report(ei, s.broken(h, c))
}

func (s *System) getFunctionDesc(h rfcapi.Handle, name *uint16, ei *rfcapi.ErrorInfo) rfcapi.Handle {
	s.calls.Add(1)
	done := s.track(h)
	defer done()
	s.mu.Lock()
	defer s.mu.Unlock()
	c, f := s.connOf(h)
	if f == nil {
		f = s.broken(h, c)
	}
	if f != nil {
		report(ei, f)
		return 0
	}
	n := rfcapi.StringZ(name)
	fd, ok := s.lookupFunction(n)
	if !ok {
		report(ei, failf(rfcapi.RCNotFound, "FU_NOT_FOUND", "ID:FL Type:E Number:046 %s", n))
		return 0
	}
	report(ei, nil)
	return fd.handle
}

func (s *System) funcDescOf(h rfcapi.Handle) (*funcDef, *fault) {
	fd, ok := s.fdescs[h]
	if !ok {
		return nil, invalidHandle("function description", h)
	}
	return fd, nil
}

func (s *System) typeDescOf(h rfcapi.Handle) (*typeDef, *fault) {
	td, ok := s.tdescs[h]
	if !ok {
		return nil, invalidHandle("type description", h)
	}
	return td, nil
}

func (s *System) getFunctionName(h rfcapi.Handle, name *uint16, ei *rfcapi.ErrorInfo) rfcapi.RC {
	defer s.enter()()
	fd, f := s.funcDescOf(h)
	if f != nil {
		return report(ei, f)
	}
	rfcapi.PutZ(unsafe.Slice(name, rfcapi.ABAPNameLen), fd.name)
	return report(ei, nil)
}

func (s *System) getParameterCount(h rfcapi.Handle, count *uint32, ei *rfcapi.ErrorInfo) rfcapi.RC {
	defer s.enter()()
	fd, f := s.funcDescOf(h)
	if f != nil {
		return report(ei, f)
	}
	*count = uint32(len(fd.params))
	return report(ei, nil)
}

func (s *System) getParameterDescByIndex(h rfcapi.Handle, index uint32, desc *rfcapi.ParameterDesc, ei *rfcapi.ErrorInfo) rfcapi.RC {
	defer s.enter()()
	fd, f := s.funcDescOf(h)
	if f != nil {
		return report(ei, f)
	}
	if int(index) >= len(fd.params) {
		return report(ei, failf(rfcapi.RCInvalidParameter, "RFC_INVALID_PARAMETER", "Index %d out of range", index))
	}
	p := &fd.params[index]
	*desc = rfcapi.ParameterDesc{
		Type:      p.typ,
		Direction: p.dir,
		NucLength: p.nuc,
		UcLength:  p.uc,
		Decimals:  p.decimals,
	}
	rfcapi.PutZ(desc.Name[:], p.name)
	rfcapi.PutZ(desc.DefaultValue[:], p.def)
	rfcapi.PutZ(desc.ParameterText[:], p.text)
	if p.td != nil {
		desc.TypeDescHandle = p.td.handle
	}
	if p.optional {
		desc.Optional = 1
	}
	return report(ei, nil)
}

func (s *System) getTypeName(h rfcapi.Handle, name *uint16, ei *rfcapi.ErrorInfo) rfcapi.RC {
	defer s.enter()()
	td, f := s.typeDescOf(h)
	if f != nil {
		return report(ei, f)
	}
	rfcapi.PutZ(unsafe.Slice(name, rfcapi.ABAPNameLen), td.name)
	return report(ei, nil)
}

func (s *System) getTypeLength(h rfcapi.Handle, nuc, uc *uint32, ei *rfcapi.ErrorInfo) rfcapi.RC {
	defer s.enter()()
	td, f := s.typeDescOf(h)
	if f != nil {
		return report(ei, f)
	}
	*nuc, *uc = td.nuc, td.uc
	return report(ei, nil)
}

func (s *System) getFieldCount(h rfcapi.Handle, count *uint32, ei *rfcapi.ErrorInfo) rfcapi.RC {
	defer s.enter()()
	td, f := s.typeDescOf(h)
	if f != nil {
		return report(ei, f)
	}
	*count = uint32(len(td.fields))
	return report(ei, nil)
}

func (s *System) getFieldDescByIndex(h rfcapi.Handle, index uint32, desc *rfcapi.FieldDesc, ei *rfcapi.ErrorInfo) rfcapi.RC {
	defer s.enter()()
	td, f := s.typeDescOf(h)
	if f != nil {
		return report(ei, f)
	}
	if int(index) >= len(td.fields) {
		return report(ei, failf(rfcapi.RCInvalidParameter, "RFC_INVALID_PARAMETER", "Index %d out of range", index))
	}
	fd := &td.fields[index]
	*desc = rfcapi.FieldDesc{
		Type:      fd.typ,
		NucLength: fd.nuc,
		NucOffset: fd.nucOff,
		UcLength:  fd.uc,
		UcOffset:  fd.ucOff,
		Decimals:  fd.decimals,
	}
	rfcapi.PutZ(desc.Name[:], fd.name)
	if fd.td != nil {
		desc.TypeDescHandle = fd.td.handle
	}
	return report(ei, nil)
}

func (s *System) createFunction(h rfcapi.Handle, ei *rfcapi.ErrorInfo) rfcapi.Handle {
	defer s.enter()()
	fd, f := s.funcDescOf(h)
	if f != nil {
		report(ei, f)
		return 0
	}
	fh, c := s.newContainer(true, fd.params)
	c.fn = fd
	s.open[KindFunction]++
	report(ei, nil)
	return fh
}

// destroyFault consumes one injected destroy failure for kind.
func (s *System) destroyFault(kind Kind) *fault {
	if s.faults[kind] <= 0 {
		return nil
	}
	s.faults[kind]--
	return failf(rfcapi.RCIllegalState, "RFC_ILLEGAL_STATE", "injected failure destroying %s", kind)
}

// destroy frees an owned container or table of the given kind.
func (s *System) destroy(h rfcapi.Handle, kind Kind, ei *rfcapi.ErrorInfo) rfcapi.RC {
	owned := false
	switch o := s.objects[h].(type) {
	case *container:
		owned = o.owned && (o.fn != nil) == (kind == KindFunction) && kind != KindTable
	case *table:
		owned = o.owned && kind == KindTable
	}
	if !owned {
		return report(ei, invalidHandle(kind.String(), h))
	}
	s.free(h)
	s.open[kind]--
	return report(ei, s.destroyFault(kind))
}

func (s *System) destroyFunction(h rfcapi.Handle, ei *rfcapi.ErrorInfo) rfcapi.RC {
	defer s.enter()()
	return s.destroy(h, KindFunction, ei)
}

func (s *System) invoke(ch, fh rfcapi.Handle, ei *rfcapi.ErrorInfo) rfcapi.RC {
	s.calls.Add(1)
	done := s.track(ch)
	defer done()
	s.mu.Lock()
	defer s.mu.Unlock()

	cn, f := s.connOf(ch)
	if f != nil {
		return report(ei, f)
	}
	if f := s.broken(ch, cn); f != nil {
		return report(ei, f)
	}
	fn, ok := s.objects[fh].(*container)
	if !ok || fn.fn == nil {
		return report(ei, invalidHandle("function", fh))
	}
	f = fn.fn.run(&call{s: s, conn: cn, fn: fn})
	if f != nil && f.rc == rfcapi.RCAbapRuntimeFailure {
		s.dropConnection(ch)
	}
	return report(ei, f)
}

func (s *System) createStructure(h rfcapi.Handle, ei *rfcapi.ErrorInfo) rfcapi.Handle {
	defer s.enter()()
	td, f := s.typeDescOf(h)
	if f != nil {
		report(ei, f)
		return 0
	}
	sh, c := s.newContainer(true, td.fields)
	c.td = td
	s.open[KindStructure]++
	report(ei, nil)
	return sh
}

func (s *System) destroyStructure(h rfcapi.Handle, ei *rfcapi.ErrorInfo) rfcapi.RC {
	defer s.enter()()
	return s.destroy(h, KindStructure, ei)
}

func (s *System) createTable(h rfcapi.Handle, ei *rfcapi.ErrorInfo) rfcapi.Handle {
	defer s.enter()()
	td, f := s.typeDescOf(h)
	if f != nil {
		report(ei, f)
		return 0
	}
	th := s.newTable(td, true)
	s.open[KindTable]++
	report(ei, nil)
	return th
}

func (s *System) destroyTable(h rfcapi.Handle, ei *rfcapi.ErrorInfo) rfcapi.RC {
	defer s.enter()()
	return s.destroy(h, KindTable, ei)
}

func (s *System) tableOf(h rfcapi.Handle) (*table, *fault) {
	t, ok := s.objects[h].(*table)
	if !ok {
		return nil, invalidHandle("table", h)
	}
	return t, nil
}

func (s *System) getRowCount(h rfcapi.Handle, count *uint32, ei *rfcapi.ErrorInfo) rfcapi.RC {
	defer s.enter()()
	t, f := s.tableOf(h)
	if f != nil {
		return report(ei, f)
	}
	*count = uint32(len(t.rows))
	return report(ei, nil)
}

func (s *System) appendNewRow(h rfcapi.Handle, ei *rfcapi.ErrorInfo) rfcapi.Handle {
	defer s.enter()()
	t, f := s.tableOf(h)
	if f != nil {
		report(ei, f)
		return 0
	}
	rh, _ := s.appendRow(t)
	report(ei, nil)
	return rh
}

func (s *System) moveTo(h rfcapi.Handle, index uint32, ei *rfcapi.ErrorInfo) rfcapi.RC {
	defer s.enter()()
	t, f := s.tableOf(h)
	if f != nil {
		return report(ei, f)
	}
	if int(index) >= len(t.rows) {
		return report(ei, failf(rfcapi.RCTableMoveEOF, "RFC_TABLE_MOVE_EOF", "Index %d beyond table end", index))
	}
	t.cur = int(index)
	return report(ei, nil)
}

func (s *System) moveToFirstRow(h rfcapi.Handle, ei *rfcapi.ErrorInfo) rfcapi.RC {
	defer s.enter()()
	t, f := s.tableOf(h)
	if f != nil {
		return report(ei, f)
	}
	if len(t.rows) == 0 {
		return report(ei, failf(rfcapi.RCTableMoveEOF, "RFC_TABLE_MOVE_EOF", "Table is empty"))
	}
	t.cur = 0
	return report(ei, nil)
}

func (s *System) moveToNextRow(h rfcapi.Handle, ei *rfcapi.ErrorInfo) rfcapi.RC {
	defer s.enter()()
	t, f := s.tableOf(h)
	if f != nil {
		return report(ei, f)
	}
	if t.cur+1 >= len(t.rows) {
		t.cur = len(t.rows)
		return report(ei, failf(rfcapi.RCTableMoveEOF, "RFC_TABLE_MOVE_EOF", "Already at last row"))
	}
	t.cur++
	return report(ei, nil)
}

func (s *System) getCurrentRow(h rfcapi.Handle, ei *rfcapi.ErrorInfo) rfcapi.Handle {
	defer s.enter()()
	t, f := s.tableOf(h)
	if f != nil {
		report(ei, f)
		return 0
	}
	if t.cur < 0 || t.cur >= len(t.rows) {
		report(ei, failf(rfcapi.RCTableMoveEOF, "RFC_TABLE_MOVE_EOF", "No current row"))
		return 0
	}
	report(ei, nil)
	return t.rows[t.cur]
}

func (s *System) deleteCurrentRow(h rfcapi.Handle, ei *rfcapi.ErrorInfo) rfcapi.RC {
	defer s.enter()()
	t, f := s.tableOf(h)
	if f != nil {
		return report(ei, f)
	}
	if t.cur < 0 || t.cur >= len(t.rows) {
		return report(ei, failf(rfcapi.RCTableMoveEOF, "RFC_TABLE_MOVE_EOF", "No current row"))
	}
	s.free(t.rows[t.cur])
	t.rows = append(t.rows[:t.cur], t.rows[t.cur+1:]...)
	if t.cur >= len(t.rows) {
		t.cur = len(t.rows) - 1
	}
	return report(ei, nil)
}

func (s *System) deleteAllRows(h rfcapi.Handle, ei *rfcapi.ErrorInfo) rfcapi.RC {
	defer s.enter()()
	t, f := s.tableOf(h)
	if f != nil {
		return report(ei, f)
	}
	s.clearTable(t)
	return report(ei, nil)
}

// Setters.

func (s *System) setText(h rfcapi.Handle, name, value *uint16, length uint32, ei *rfcapi.ErrorInfo, accept func(rfcapi.Type) bool) rfcapi.RC {
	defer s.enter()()
	sl, f := s.slotOf(h, name)
	if f != nil {
		return report(ei, f)
	}
	if accept != nil && !accept(sl.def.typ) {
		return report(ei, sl.conversion(rfcapi.String(unsafe.Slice(value, length))))
	}
	var u []uint16
	if length > 0 {
		u = unsafe.Slice(value, length)
	}
	return report(ei, sl.setText(u))
}

func (s *System) setChars(h rfcapi.Handle, name, value *uint16, length uint32, ei *rfcapi.ErrorInfo) rfcapi.RC {
	return s.setText(h, name, value, length, ei, nil)
}

func (s *System) setNum(h rfcapi.Handle, name, value *uint16, length uint32, ei *rfcapi.ErrorInfo) rfcapi.RC {
	return s.setText(h, name, value, length, ei, func(t rfcapi.Type) bool { return t == rfcapi.TypeNum })
}

func (s *System) setString(h rfcapi.Handle, name, value *uint16, length uint32, ei *rfcapi.ErrorInfo) rfcapi.RC {
	return s.setText(h, name, value, length, ei, nil)
}

func (s *System) setDate(h rfcapi.Handle, name, value *uint16, ei *rfcapi.ErrorInfo) rfcapi.RC {
	return s.setText(h, name, value, rfcapi.DateLen, ei, func(t rfcapi.Type) bool {
		return t == rfcapi.TypeDate || t == rfcapi.TypeChar || t == rfcapi.TypeString
	})
}

func (s *System) setTime(h rfcapi.Handle, name, value *uint16, ei *rfcapi.ErrorInfo) rfcapi.RC {
	return s.setText(h, name, value, rfcapi.TimeLen, ei, func(t rfcapi.Type) bool {
		return t == rfcapi.TypeTime || t == rfcapi.TypeChar || t == rfcapi.TypeString
	})
}

func (s *System) setRaw(h rfcapi.Handle, name *uint16, value *byte, length uint32, ei *rfcapi.ErrorInfo) rfcapi.RC {
	defer s.enter()()
	sl, f := s.slotOf(h, name)
	if f != nil {
		return report(ei, f)
	}
	var b []byte
	if length > 0 {
		b = unsafe.Slice(value, length)
	}
	return report(ei, sl.setBytes(b))
}

func (s *System) setBytes(h rfcapi.Handle, name *uint16, value *byte, length uint32, ei *rfcapi.ErrorInfo) rfcapi.RC {
	return s.setRaw(h, name, value, length, ei)
}

func (s *System) setXString(h rfcapi.Handle, name *uint16, value *byte, length uint32, ei *rfcapi.ErrorInfo) rfcapi.RC {
	return s.setRaw(h, name, value, length, ei)
}

func (s *System) setInteger(h rfcapi.Handle, name *uint16, value int64, ei *rfcapi.ErrorInfo) rfcapi.RC {
	defer s.enter()()
	sl, f := s.slotOf(h, name)
	if f != nil {
		return report(ei, f)
	}
	return report(ei, sl.setInt(value))
}

func (s *System) setInt(h rfcapi.Handle, name *uint16, value int32, ei *rfcapi.ErrorInfo) rfcapi.RC {
	return s.setInteger(h, name, int64(value), ei)
}

func (s *System) setInt1(h rfcapi.Handle, name *uint16, value uint8, ei *rfcapi.ErrorInfo) rfcapi.RC {
	return s.setInteger(h, name, int64(value), ei)
}

func (s *System) setInt2(h rfcapi.Handle, name *uint16, value int16, ei *rfcapi.ErrorInfo) rfcapi.RC {
	return s.setInteger(h, name, int64(value), ei)
}

func (s *System) setInt8(h rfcapi.Handle, name *uint16, value int64, ei *rfcapi.ErrorInfo) rfcapi.RC {
	return s.setInteger(h, name, value, ei)
}

func (s *System) setFloat(h rfcapi.Handle, name *uint16, value float64, ei *rfcapi.ErrorInfo) rfcapi.RC {
	defer s.enter()()
	sl, f := s.slotOf(h, name)
	if f != nil {
		return report(ei, f)
	}
	return report(ei, sl.setFloat(value))
}

func (s *System) setStructure(h rfcapi.Handle, name *uint16, value rfcapi.Handle, ei *rfcapi.ErrorInfo) rfcapi.RC {
	defer s.enter()()
	sl, f := s.slotOf(h, name)
	if f != nil {
		return report(ei, f)
	}
	src, ok := s.objects[value].(*container)
	if !ok || src.fn != nil {
		return report(ei, invalidHandle("structure", value))
	}
	if sl.def.typ != rfcapi.TypeStructure || src.td == nil || src.td.name != sl.def.td.name {
		return report(ei, sl.conversion("structure"))
	}
	s.copyInto(s.childContainer(sl), src)
	return report(ei, nil)
}

func (s *System) setTable(h rfcapi.Handle, name *uint16, value rfcapi.Handle, ei *rfcapi.ErrorInfo) rfcapi.RC {
	defer s.enter()()
	sl, f := s.slotOf(h, name)
	if f != nil {
		return report(ei, f)
	}
	src, f := s.tableOf(value)
	if f != nil {
		return report(ei, f)
	}
	if sl.def.typ != rfcapi.TypeTable || src.td.name != sl.def.td.name {
		return report(ei, sl.conversion("table"))
	}
	s.copyTable(s.childTable(sl), src)
	return report(ei, nil)
}

// Getters.

func (s *System) getPadded(h rfcapi.Handle, name, buf *uint16, bufLen uint32, ei *rfcapi.ErrorInfo, pad uint16) rfcapi.RC {
	defer s.enter()()
	sl, f := s.slotOf(h, name)
	if f != nil {
		return report(ei, f)
	}
	text := sl.text()
	if sl.def.typ != rfcapi.TypeChar && sl.def.typ != rfcapi.TypeNum {
		text = []uint16(chars(strings.TrimRight(rfcapi.String(text), " ")))
	}
	if len(text) > int(bufLen) {
		return report(ei, sl.overflow(rfcapi.String(text)))
	}
	out := unsafe.Slice(buf, bufLen)
	if pad == '0' {
		// numeric text is right-aligned
		n := copy(out[int(bufLen)-len(text):], text)
		for i := 0; i < int(bufLen)-n; i++ {
			out[i] = pad
		}
	} else {
		n := copy(out, text)
		for i := n; i < len(out); i++ {
			out[i] = pad
		}
	}
	return report(ei, nil)
}

func (s *System) getChars(h rfcapi.Handle, name, buf *uint16, bufLen uint32, ei *rfcapi.ErrorInfo) rfcapi.RC {
	return s.getPadded(h, name, buf, bufLen, ei, ' ')
}

func (s *System) getNum(h rfcapi.Handle, name, buf *uint16, bufLen uint32, ei *rfcapi.ErrorInfo) rfcapi.RC {
	return s.getPadded(h, name, buf, bufLen, ei, '0')
}

func (s *System) getClock(h rfcapi.Handle, name, buf *uint16, ei *rfcapi.ErrorInfo, want rfcapi.Type, width int) rfcapi.RC {
	defer s.enter()()
	sl, f := s.slotOf(h, name)
	if f != nil {
		return report(ei, f)
	}
	if sl.def.typ != want {
		return report(ei, sl.conversion(rfcapi.String(sl.text())))
	}
	copy(unsafe.Slice(buf, width), sl.chars)
	return report(ei, nil)
}

func (s *System) getDate(h rfcapi.Handle, name, buf *uint16, ei *rfcapi.ErrorInfo) rfcapi.RC {
	return s.getClock(h, name, buf, ei, rfcapi.TypeDate, rfcapi.DateLen)
}

func (s *System) getTime(h rfcapi.Handle, name, buf *uint16, ei *rfcapi.ErrorInfo) rfcapi.RC {
	return s.getClock(h, name, buf, ei, rfcapi.TypeTime, rfcapi.TimeLen)
}

func (s *System) getStringLength(h rfcapi.Handle, name *uint16, length *uint32, ei *rfcapi.ErrorInfo) rfcapi.RC {
	defer s.enter()()
	sl, f := s.slotOf(h, name)
	if f != nil {
		return report(ei, f)
	}
	switch sl.def.typ {
	case rfcapi.TypeByte, rfcapi.TypeXString:
		*length = uint32(len(sl.raw))
	default:
		*length = uint32(len(chars(sl.goString())))
	}
	return report(ei, nil)
}

func (s *System) getString(h rfcapi.Handle, name, buf *uint16, bufLen uint32, strLen *uint32, ei *rfcapi.ErrorInfo) rfcapi.RC {
	defer s.enter()()
	sl, f := s.slotOf(h, name)
	if f != nil {
		return report(ei, f)
	}
	text := chars(sl.goString())
	*strLen = uint32(len(text))
	if uint32(len(text)) >= bufLen {
		return report(ei, failf(rfcapi.RCBufferTooSmall, "RFC_BUFFER_TOO_SMALL",
			"Buffer of %d characters too small for %d characters of %s", bufLen, len(text), sl.def.name))
	}
	out := unsafe.Slice(buf, bufLen)
	n := copy(out, text)
	out[n] = 0
	return report(ei, nil)
}

func (s *System) getBytes(h rfcapi.Handle, name *uint16, buf *byte, bufLen uint32, ei *rfcapi.ErrorInfo) rfcapi.RC {
	defer s.enter()()
	sl, f := s.slotOf(h, name)
	if f != nil {
		return report(ei, f)
	}
	if sl.def.typ != rfcapi.TypeByte && sl.def.typ != rfcapi.TypeXString {
		return report(ei, sl.conversion(rfcapi.String(sl.text())))
	}
	if len(sl.raw) > int(bufLen) {
		return report(ei, sl.overflow(rfcapi.String(sl.text())))
	}
	out := unsafe.Slice(buf, bufLen)
	n := copy(out, sl.raw)
	clear(out[n:])
	return report(ei, nil)
}

func (s *System) getXString(h rfcapi.Handle, name *uint16, buf *byte, bufLen uint32, xLen *uint32, ei *rfcapi.ErrorInfo) rfcapi.RC {
	defer s.enter()()
	sl, f := s.slotOf(h, name)
	if f != nil {
		return report(ei, f)
	}
	if sl.def.typ != rfcapi.TypeByte && sl.def.typ != rfcapi.TypeXString {
		return report(ei, sl.conversion(rfcapi.String(sl.text())))
	}
	*xLen = uint32(len(sl.raw))
	if len(sl.raw) > int(bufLen) {
		return report(ei, failf(rfcapi.RCBufferTooSmall, "RFC_BUFFER_TOO_SMALL",
			"Buffer of %d bytes too small for %d bytes of %s", bufLen, len(sl.raw), sl.def.name))
	}
	if len(sl.raw) > 0 {
		copy(unsafe.Slice(buf, bufLen), sl.raw)
	}
	return report(ei, nil)
}

func (s *System) getInteger(h rfcapi.Handle, name *uint16, ei *rfcapi.ErrorInfo, lo, hi int64) (int64, rfcapi.RC) {
	defer s.enter()()
	sl, f := s.slotOf(h, name)
	if f != nil {
		return 0, report(ei, f)
	}
	i, f := sl.intValue()
	if f == nil && (i < lo || i > hi) {
		f = sl.overflow(rfcapi.String(sl.text()))
	}
	return i, report(ei, f)
}

func (s *System) getInt(h rfcapi.Handle, name *uint16, value *int32, ei *rfcapi.ErrorInfo) rfcapi.RC {
	i, rc := s.getInteger(h, name, ei, -1<<31, 1<<31-1)
	*value = int32(i)
	return rc
}

func (s *System) getInt1(h rfcapi.Handle, name *uint16, value *uint8, ei *rfcapi.ErrorInfo) rfcapi.RC {
	i, rc := s.getInteger(h, name, ei, 0, 255)
	*value = uint8(i)
	return rc
}

func (s *System) getInt2(h rfcapi.Handle, name *uint16, value *int16, ei *rfcapi.ErrorInfo) rfcapi.RC {
	i, rc := s.getInteger(h, name, ei, -1<<15, 1<<15-1)
	*value = int16(i)
	return rc
}

func (s *System) getInt8(h rfcapi.Handle, name *uint16, value *int64, ei *rfcapi.ErrorInfo) rfcapi.RC {
	i, rc := s.getInteger(h, name, ei, -1<<63, 1<<63-1)
	*value = i
	return rc
}

func (s *System) getFloat(h rfcapi.Handle, name *uint16, value *float64, ei *rfcapi.ErrorInfo) rfcapi.RC {
	defer s.enter()()
	sl, f := s.slotOf(h, name)
	if f != nil {
		return report(ei, f)
	}
	x, f := sl.floatValue()
	*value = x
	return report(ei, f)
}

func (s *System) getChild(h rfcapi.Handle, name *uint16, value *rfcapi.Handle, ei *rfcapi.ErrorInfo, want rfcapi.Type) rfcapi.RC {
	defer s.enter()()
	sl, f := s.slotOf(h, name)
	if f != nil {
		return report(ei, f)
	}
	if sl.def.typ != want {
		return report(ei, sl.conversion(want.String()))
	}
	*value = sl.child
	return report(ei, nil)
}

func (s *System) getStructure(h rfcapi.Handle, name *uint16, value *rfcapi.Handle, ei *rfcapi.ErrorInfo) rfcapi.RC {
	return s.getChild(h, name, value, ei, rfcapi.TypeStructure)
}

func (s *System) getTable(h rfcapi.Handle, name *uint16, value *rfcapi.Handle, ei *rfcapi.ErrorInfo) rfcapi.RC {
	return s.getChild(h, name, value, ei, rfcapi.TypeTable)
}
