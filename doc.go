/*
Package jsonshrink writes JSON that means the same as the standard encoding,
but is never longer, mostly by picking the shortest literal for every number.

	{"a":1000000,"b":0.0001,"c":[10000,20000]}

becomes

	{"a":1e6,"b":1e-4,"c":[1e4,2e4]}

[ShrinkNumber] chooses between the decimal form, the exponential form and a
shortened exponential form, and only keeps a candidate that parses back to the
exact same number. [Stringify] walks any Go value and uses it for every
number; [ShrinkJSON] does the same for JSON text, keeping the member order.

[VerifiedStringify] and [VerifiedShrinkJSON] additionally decode the result and
compare it with the standard encoding from [github.com/go-json-experiment/json],
falling back to the standard encoding if the two differ or the shrunk text is
longer.

[Options] can drop undefined or null members, round numbers to a precision, or
drop members that would create a cycle. Dropping nulls and rounding change the
meaning of the output, so the verified functions do not check them.

For logging, [NewHandler] provides a [log/slog.Handler] that writes records
through Stringify, and [ReplaceAttrTruncate] keeps large attributes in check.
*/
package jsonshrink
