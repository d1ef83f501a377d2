package raftlog

import "github.com/ugorji/go/codec"

var msgpackHandle = &codec.MsgpackHandle{}

func encode(v interface{}) []byte {
	var buf []byte
	enc := codec.NewEncoderBytes(&buf, msgpackHandle)
	if err := enc.Encode(v); err != nil {
		panic("raftlog: encode: " + err.Error())
	}
	return buf
}

func decode(data []byte, v interface{}) error {
	dec := codec.NewDecoderBytes(data, msgpackHandle)
	return dec.Decode(v)
}
