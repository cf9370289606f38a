package interp

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/wfunc/if-gateway/internal/errors"
	"github.com/wfunc/if-gateway/internal/glk"
)

// malformedExcerptLen 畸形输出诊断里保留的字节数
const malformedExcerptLen = 160

// ParseOutput 容错解析解释器的标准输出。
// 名义情况是恰好一个JSON对象，但实际可能是多个换行拼接的JSON节，
// 其中任何一节都可能是 {"type":"error","message":...}。
// 返回第一个非error更新（可能为nil）和收集到的错误/诊断消息。
// 完全无法按JSON节切分时返回 ErrMalformedOutput。
func ParseOutput(data []byte) (*glk.Update, []string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var (
		stanzas []json.RawMessage
		msgs    []string
	)
	for {
		var raw json.RawMessage
		err := dec.Decode(&raw)
		if err != nil {
			if len(stanzas) == 0 {
				return nil, nil, errors.Newf(errors.ErrMalformedOutput,
					"%s", excerpt(trimmed))
			}
			// 前面已有完整JSON节，剩余部分按垃圾尾巴记诊断
			msgs = append(msgs, "trailing garbage after JSON output discarded")
			break
		}
		stanzas = append(stanzas, raw)
		if !dec.More() {
			break
		}
	}

	var picked json.RawMessage
	discarded := 0
	for _, raw := range stanzas {
		var head struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			// 节是合法JSON但不是对象（数组、标量）
			msgs = append(msgs, fmt.Sprintf("unexpected JSON stanza: %s", excerpt(raw)))
			continue
		}
		if head.Type == glk.UpdateTypeError {
			msg := head.Message
			if msg == "" {
				msg = "???"
			}
			msgs = append(msgs, msg)
			continue
		}
		if picked == nil {
			picked = raw
		} else {
			discarded++
		}
	}
	if discarded > 0 {
		msgs = append(msgs, fmt.Sprintf("discarded %d extra update stanza(s)", discarded))
	}

	if picked == nil {
		return nil, msgs, nil
	}

	update, err := glk.ParseUpdate(picked)
	if err != nil {
		// 结构校验失败按状态机拒绝处理，调用方中止本回合
		return nil, msgs, errors.Wrap(err, errors.ErrStateUpdateRejected)
	}
	return update, msgs, nil
}

// excerpt 截取前160字节用于诊断
func excerpt(data []byte) string {
	if len(data) > malformedExcerptLen {
		data = data[:malformedExcerptLen]
	}
	return string(data)
}
